package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stowplan/internal/config"
	"stowplan/internal/db"
	"stowplan/internal/logging"
	"stowplan/internal/migrate"
	"stowplan/internal/planner"
)

var rootCmd = &cobra.Command{
	Use:   "stow",
	Short: "Stowplan CLI",
	Long: `Stowplan checks whether an inventory fits a warehouse and where each item goes.
Core concepts:
- Warehouse: a named site made of zones; each zone has floor area, ceiling height, floor strength and optional climate control or special handling.
- Inventory upload: a CSV or XLSX inventory list, normalized into items with weight, footprint and height.
- BSF (broken stow factor): extra floor space per item for aisles and clearances; 0.63 adds 63% to every footprint.
- Allocation: a greedy placement of every item into the best fitting zone; items that fit nowhere are reported with a reason.
- Reports: allocation results rendered as a table, CSV, HTML or XLSX.
- Event log: every change, view with 'stow log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("STOWPLAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(warehouseCmd())
	rootCmd.AddCommand(zoneCmd())
	rootCmd.AddCommand(inventoryCmd())
	rootCmd.AddCommand(allocateCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	return config.LoadOptional(viper.GetString("workspace"))
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewFromEnv(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
}

// withPlanner opens the workspace database, applies migrations and runs fn
// with a planner acting as --actor-id.
func withPlanner(ctx context.Context, fn func(context.Context, planner.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		return err
	}
	p := planner.New(conn, cfg, planner.WithLogger(newLogger(cfg)))
	return fn(planner.WithActor(ctx, viper.GetString("actor-id")), p)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func optionalString(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}

func optionalFloat(cmd *cobra.Command, flag string, value float64) *float64 {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}

func optionalInt(cmd *cobra.Command, flag string, value int) *int {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}

func optionalBool(cmd *cobra.Command, flag string, value bool) *bool {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}
