package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stowplan/internal/planner"
)

func inventoryCmd() *cobra.Command {
	inv := &cobra.Command{
		Use:   "inventory",
		Short: "Manage inventory uploads",
		Long:  "Inventory uploads are CSV or XLSX lists. Column headers are matched loosely (Qty, Quantity, Count ...) and rows that cannot be read are reported, not stored.",
	}
	inv.AddCommand(inventoryImportCmd())
	inv.AddCommand(inventoryListCmd())
	inv.AddCommand(inventoryShowCmd())
	inv.AddCommand(inventoryDeleteCmd())
	return inv
}

func inventoryImportCmd() *cobra.Command {
	var opts planner.ImportOptions
	var bsf float64
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import an inventory file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			opts.Filename = args[0]
			opts.Reader = f
			opts.BSF = optionalFloat(cmd, "bsf", bsf)
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				res, err := p.ImportInventory(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				up := res.Upload
				fmt.Printf("Imported %s (%s): %d entries, %d units, %.0f lbs, %.1f sq ft, BSF %.2f\n",
					up.Name, up.ID, up.TotalEntries, up.TotalItems, up.TotalWeight, up.TotalArea, up.BSF)
				if len(res.RowErrors) > 0 {
					tw := newTable()
					tw.AppendHeader(table.Row{"Row", "Field", "Problem", "Skipped"})
					for _, e := range res.RowErrors {
						tw.AppendRow(table.Row{e.Row, e.Field, e.Msg, yesNo(e.Skipped)})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "upload name (defaults to the file name)")
	cmd.Flags().StringVar(&opts.Site, "site", "", "origin site")
	cmd.Flags().StringVar(&opts.Site2, "site2", "", "destination site")
	cmd.Flags().Float64Var(&bsf, "bsf", 0, "broken stow factor (defaults to allocation.default_bsf)")
	return cmd
}

func inventoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List inventory uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				items, err := p.ListUploads(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Entries", "Units", "Weight (lbs)", "Area (sq ft)", "BSF", "Uploaded"})
				for _, u := range items {
					tw.AppendRow(table.Row{u.ID, u.Name, u.TotalEntries, u.TotalItems, u.TotalWeight, u.TotalArea, u.BSF, u.UploadedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func inventoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <upload-id>",
		Short: "Show an upload and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				up, err := p.GetUpload(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(up)
				}
				fmt.Printf("Upload: %s (%s), BSF %.2f\n", up.Name, up.ID, up.BSF)
				tw := newTable()
				tw.AppendHeader(table.Row{"Name", "Category", "Qty", "Weight", "Area", "Height", "PSF", "Priority", "Climate", "Special"})
				for _, it := range up.Items {
					tw.AppendRow(table.Row{it.Name, it.Category, it.Quantity, it.Weight, it.Area, it.Height,
						fmt.Sprintf("%.1f", it.PSF), it.PriorityOrder, yesNo(it.RequiresClimateControl), yesNo(it.RequiresSpecialHandling)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func inventoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <upload-id>",
		Short: "Delete an upload, its items and its allocation runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				return p.DeleteUpload(ctx, args[0])
			})
		},
	}
}
