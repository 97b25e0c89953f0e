package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"stowplan/internal/config"
	"stowplan/internal/db"
	"stowplan/internal/logging"
	"stowplan/internal/migrate"
	"stowplan/internal/observability"
	"stowplan/internal/planner"
	"stowplan/internal/repo"
	"stowplan/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Long:  "Serves the REST API. Set STOWPLAN_JWT_SECRET to require HS256 bearer tokens; without it requests are accepted and X-Actor-Id names the actor.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
				basePath = cfg.Server.BasePath
			}
			log := newLogger(cfg)

			shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracing(sctx)
			}()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics, err := observability.NewMetrics(reg)
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
			p := planner.New(conn, cfg, planner.WithLogger(log), planner.WithMetrics(metrics))

			handler, err := server.New(server.Config{
				Planner:  p,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: os.Getenv("STOWPLAN_JWT_SECRET")},
				Metrics:  metrics,
				Logger:   log,
			})
			if err != nil {
				return err
			}

			hooks := server.NewWebhookDispatcher(p.Repo, cfg.Webhooks, log)
			go hooks.Run(ctx)

			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(sctx)
			}()
			log.Info(ctx, "serving stowplan api", logging.String("addr", addr), logging.String("base_path", basePath))
			fmt.Printf("Serving Stowplan API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs)\n", addr, basePath, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func seedCmd() *cobra.Command {
	var opts planner.SeedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo warehouses and inventories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				res, err := p.Seed(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Seeded %d warehouses, %d uploads, %d allocations\n", len(res.Warehouses), len(res.Uploads), len(res.Allocations))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "delete all existing data first")
	cmd.Flags().BoolVar(&opts.WithAllocation, "with-allocation", false, "also run sample allocations")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage stowplan.yml"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default stowplan.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stowplan.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if file != "" {
				_, err = config.FromFile(file)
			} else {
				_, err = config.Load(viper.GetString("workspace"))
			}
			if err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file (defaults to the workspace stowplan.yml)")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd.Context(), func(ctx context.Context, p planner.Service) error {
				events, err := p.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + ":" + e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}
