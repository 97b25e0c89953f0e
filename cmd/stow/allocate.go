package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stowplan/internal/planner"
	"stowplan/internal/repo"
	"stowplan/internal/report"
)

func allocateCmd() *cobra.Command {
	alloc := &cobra.Command{
		Use:   "allocate",
		Short: "Run and inspect allocations",
		Long:  "An allocation places every item of an upload into the zones of a warehouse. Items are placed most constrained first; anything left over is listed with the reason it did not fit.",
	}
	alloc.AddCommand(allocateRunCmd())
	alloc.AddCommand(allocateListCmd())
	alloc.AddCommand(allocateShowCmd())
	alloc.AddCommand(allocateDeleteCmd())
	alloc.AddCommand(allocateCompareCmd())
	return alloc
}

func allocateRunCmd() *cobra.Command {
	var opts planner.RunOptions
	var warehouse string
	var bsf float64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Allocate an upload into a warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.BSF = optionalFloat(cmd, "bsf", bsf)
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				w, err := p.ResolveWarehouse(ctx, warehouse)
				if err != nil {
					return err
				}
				opts.WarehouseID = w.ID
				a, err := p.RunAllocation(ctx, opts)
				if err != nil {
					return err
				}
				return printAllocation(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.UploadID, "upload", "", "upload id")
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "warehouse id or name")
	cmd.Flags().Float64Var(&bsf, "bsf", 0, "broken stow factor (defaults to the upload's)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "result name")
	_ = cmd.MarkFlagRequired("upload")
	_ = cmd.MarkFlagRequired("warehouse")
	return cmd
}

func allocateListCmd() *cobra.Command {
	var f repo.RunFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List allocation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				runs, err := p.ListAllocations(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(runs)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "BSF", "Allocated", "Failed", "Fit", "Created"})
				for _, r := range runs {
					tw.AppendRow(table.Row{r.ID, r.Name, r.BSF, r.TotalAllocated, r.TotalFailed, yesNo(r.OverallFit), r.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.UploadID, "upload", "", "upload filter")
	cmd.Flags().StringVar(&f.WarehouseID, "warehouse", "", "warehouse id filter")
	return cmd
}

func allocateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <allocation-id>",
		Short: "Show an allocation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				a, err := p.GetAllocation(ctx, args[0])
				if err != nil {
					return err
				}
				return printAllocation(a)
			})
		},
	}
}

func allocateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <allocation-id>",
		Short: "Delete an allocation run and its saved reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				return p.DeleteAllocation(ctx, args[0])
			})
		},
	}
}

func allocateCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <allocation-id>...",
		Short: "Compare allocation runs side by side",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				cmp, err := p.CompareAllocations(ctx, args)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmp)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Warehouse", "Upload", "BSF", "Rate %", "Utilization %", "Fit"})
				for _, r := range cmp.Results {
					tw.AppendRow(table.Row{r.ID, r.Name, r.WarehouseName, r.UploadName, r.BSF,
						fmt.Sprintf("%.1f", r.AllocationRate), fmt.Sprintf("%.1f", r.OverallUtilization), yesNo(r.OverallFit)})
				}
				tw.Render()
				if cmp.BestFit != nil {
					fmt.Printf("Best allocation rate: %s (%.1f%%)\n", cmp.BestFit.Name, cmp.BestFit.AllocationRate)
				}
				if cmp.BestUtilization != nil {
					fmt.Printf("Best utilization: %s (%.1f%%)\n", cmp.BestUtilization.Name, cmp.BestUtilization.OverallUtilization)
				}
				return nil
			})
		},
	}
}

func printAllocation(a planner.Allocation) error {
	if viper.GetBool("json") {
		return printJSON(a)
	}
	fmt.Printf("%s (%s)\n", a.Name, a.ID)
	fmt.Printf("Warehouse: %s  Upload: %s  BSF: %.2f\n", a.WarehouseName, a.UploadName, a.BSF)
	return report.Table(os.Stdout, report.Meta{}, a.Result)
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Render and export allocation reports"}
	rep.AddCommand(reportShowCmd())
	rep.AddCommand(reportExportCmd())
	rep.AddCommand(reportListCmd())
	return rep
}

func reportShowCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "show <allocation-id>",
		Short: "Write a report to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := report.ParseKind(kind)
			if err != nil {
				return err
			}
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				return p.RenderReport(ctx, os.Stdout, args[0], k)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "type", "text", "report type (text, csv, html, xlsx)")
	return cmd
}

func reportExportCmd() *cobra.Command {
	var kind, dest string
	cmd := &cobra.Command{
		Use:   "export <allocation-id>",
		Short: "Export a report to storage and record it",
		Long:  "Destination is a storage URL such as file:///srv/reports or mem://localhost/out; it defaults to reports.destination in stowplan.yml.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := report.ParseKind(kind)
			if err != nil {
				return err
			}
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				saved, err := p.ExportReport(ctx, planner.ExportOptions{AllocationID: args[0], Kind: k, Destination: dest})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(saved)
				}
				fmt.Printf("Saved %s to %s\n", saved.Name, saved.Location)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "type", "html", "report type (text, csv, html, xlsx)")
	cmd.Flags().StringVar(&dest, "dest", "", "destination URL")
	return cmd
}

func reportListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <allocation-id>",
		Short: "List saved reports of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				items, err := p.ListReports(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Type", "Location", "Created"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.Name, r.Type, r.Location, r.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}
