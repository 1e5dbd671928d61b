package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"teb-dashboard/internal/api"
	"teb-dashboard/internal/capture"
	"teb-dashboard/internal/config"
	"teb-dashboard/internal/dataset"
	"teb-dashboard/internal/export"
	"teb-dashboard/internal/logging"
	"teb-dashboard/internal/metrics"
	"teb-dashboard/internal/models"
	"teb-dashboard/internal/session"
	"teb-dashboard/internal/telemetry"
)

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "teb-dashboard",
		Short: "TEB wind farm dashboard - failure analytics, live telemetry and report exports",
		Long: `A service and CLI for the TEB wind farm operations dashboard.
Serves the period snapshots, live telemetry and alert list over a JSON API
and builds the summary PDF, the data workbook and the dashboard capture PDF.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "Path to YAML config file")

	// Add commands
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(periodsCmd())
	rootCmd.AddCommand(benchmarkCmd())
	rootCmd.AddCommand(recommendationsCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads the configuration and sets up logging
func initConfig() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger = logging.Init(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return nil
}

// newSession wires a session to the configured telemetry API
func newSession(m *metrics.Metrics) (*session.Session, error) {
	client := telemetry.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	sess, err := session.New(client, session.Options{
		RealtimeInterval: cfg.Polling.RealtimeInterval,
		AlertInterval:    cfg.Polling.AlertInterval,
		Thresholds: telemetry.Thresholds{
			Critical: cfg.Alerts.Critical(),
			Warning:  cfg.Alerts.Warning(),
		},
		Logger:       logger,
		Observe:      m.Poll,
		OnConnection: m.Connection,
	})
	if err != nil {
		return nil, fmt.Errorf("session error: %w", err)
	}
	return sess, nil
}

// serveCmd starts the REST API server and the pollers
func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				cfg.Server.Listen = listen
			}

			m := metrics.NewMetrics()
			sess, err := newSession(m)
			if err != nil {
				return err
			}
			defer sess.Close()

			if !config.Enabled(cfg.Polling.AutoRefresh) {
				sess.SetAutoRefresh(false)
			}
			if !config.Enabled(cfg.Polling.Alerting) {
				sess.SetAlerting(false)
			}
			sess.Start()

			server := api.NewServer(sess, capture.NewStore(), api.Options{
				Metrics:      m,
				Logger:       logger,
				AccessLog:    os.Stdout,
				CORSOrigins:  cfg.Server.CORSOrigins,
				CaptureScale: cfg.Capture.Scale,
			})
			httpServer := &http.Server{
				Addr:              cfg.Server.Listen,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			fmt.Printf("TEB Wind Farm Dashboard API Server\n")
			fmt.Printf("   Listening on %s\n", cfg.Server.Listen)
			fmt.Printf("   Telemetry API: %s\n\n", cfg.Upstream.BaseURL)
			fmt.Println("Available endpoints:")
			fmt.Println("  GET    /health")
			fmt.Println("  GET    /api/v1/periods")
			fmt.Println("  GET    /api/v1/periods/{key}")
			fmt.Println("  GET    /api/v1/benchmark")
			fmt.Println("  GET    /api/v1/recommendations")
			fmt.Println("  GET    /api/v1/realtime")
			fmt.Println("  POST   /api/v1/realtime/refresh")
			fmt.Println("  PUT    /api/v1/realtime/auto-refresh")
			fmt.Println("  GET    /api/v1/predictions")
			fmt.Println("  GET    /api/v1/alerts")
			fmt.Println("  DELETE /api/v1/alerts")
			fmt.Println("  PUT    /api/v1/alerts/enabled")
			fmt.Println("  POST   /api/v1/alerts/check")
			fmt.Println("  POST   /api/v1/alerts/{id}/read")
			fmt.Println("  DELETE /api/v1/alerts/{id}")
			fmt.Println("  GET    /api/v1/stats")
			fmt.Println("  PUT    /api/v1/captures/{marker}")
			fmt.Println("  GET    /api/v1/export/report")
			fmt.Println("  GET    /api/v1/export/workbook")
			fmt.Println("  GET    /api/v1/export/dashboard")
			fmt.Println("  GET    /metrics")
			fmt.Println()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- httpServer.ListenAndServe() }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("server_shutdown", "addr", cfg.Server.Listen)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (overrides config)")
	return cmd
}

// exportCmd builds the downloadable reports without a running server
func exportCmd() *cobra.Command {
	var period string
	var output string
	var live bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Build a report file",
	}
	cmd.PersistentFlags().StringVarP(&period, "period", "p", dataset.PeriodAll, "Period key (see 'periods')")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output file (defaults to the download filename)")
	cmd.PersistentFlags().BoolVar(&live, "live", false, "Use one live reading from the telemetry API instead of a period")

	snapshot := func(ctx context.Context) (*models.PeriodSnapshot, error) {
		if !live {
			return dataset.Resolve(period), nil
		}
		client := telemetry.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
		rt, err := client.FetchRealtime(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching live data: %w", err)
		}
		return dataset.FromRealtime(rt), nil
	}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Build the summary PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot(cmd.Context())
			if err != nil {
				return err
			}
			art, err := export.BuildSummaryReport(snap)
			if err != nil {
				return fmt.Errorf("report error: %w", err)
			}
			return writeArtifact(art, output)
		},
	}

	workbookCmd := &cobra.Command{
		Use:   "workbook",
		Short: "Build the five-sheet data workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot(cmd.Context())
			if err != nil {
				return err
			}
			art, err := export.BuildWorkbook(snap)
			if err != nil {
				return fmt.Errorf("workbook error: %w", err)
			}
			return writeArtifact(art, output)
		},
	}

	var capturePath string
	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Build the dashboard capture PDF",
		Long: `Builds the paginated dashboard PDF from a PNG capture taken in the
browser, or from a rasterized chart of the period when no capture is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var loc export.Locator
			if capturePath != "" {
				data, err := os.ReadFile(capturePath)
				if err != nil {
					return fmt.Errorf("error reading capture: %w", err)
				}
				c, err := capture.New(capture.DashboardMarker, data, time.Now())
				if err != nil {
					return err
				}
				store := capture.NewStore()
				store.Put(c)
				loc = store
			} else {
				snap, err := snapshot(cmd.Context())
				if err != nil {
					return err
				}
				loc = capture.SnapshotLocator{
					Snapshot: func() *models.PeriodSnapshot { return snap },
					Scale:    cfg.Capture.Scale,
				}
			}

			art, err := export.BuildVisualReport(loc, capture.DashboardMarker)
			if errors.Is(err, export.ErrTargetNotFound) {
				return fmt.Errorf("dashboard not found, try again: %w", err)
			}
			if err != nil {
				return fmt.Errorf("dashboard error: %w", err)
			}
			return writeArtifact(art, output)
		},
	}
	dashboardCmd.Flags().StringVar(&capturePath, "capture", "", "PNG capture of the dashboard")

	cmd.AddCommand(reportCmd, workbookCmd, dashboardCmd)
	return cmd
}

// writeArtifact writes a finished export. It is only called after a
// successful build, so a failed export leaves no file behind.
func writeArtifact(art *export.Artifact, output string) error {
	if output == "" {
		output = art.Filename
	}
	if err := os.WriteFile(output, art.Body, 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", output, err)
	}
	fmt.Printf("✓ Wrote %s (%d bytes)\n", output, len(art.Body))
	return nil
}

// periodsCmd lists the selectable periods
func periodsCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "periods",
		Short: "List the analysis periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			periods := dataset.Periods()

			switch outputFormat {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(periods)
			default:
				for _, p := range periods {
					snap := dataset.Resolve(p.Key)
					fmt.Printf("%-8s %-20s %-24s falhas: %d\n", p.Key, p.Label, p.Description, snap.KPIs.TotalFailures)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// benchmarkCmd ranks the turbines of a period
func benchmarkCmd() *cobra.Command {
	var period string
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Rank turbines by availability, MTBF and MTTR",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := dataset.Resolve(period)
			rankings := dataset.Benchmark(snap)

			switch outputFormat {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rankings)
			default:
				fmt.Printf("Benchmark - %s (%s)\n", snap.Label, snap.Description)
				for _, r := range rankings {
					fmt.Printf("\n%s\n", r.Metric)
					for _, e := range r.Entries {
						fmt.Printf("  %d. %-8s %10.2f  %s\n", e.Position, e.TurbineID, e.Value, e.Tier)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&period, "period", "p", dataset.PeriodAll, "Period key (see 'periods')")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// recommendationsCmd prints the maintenance action plan
func recommendationsCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "recommendations",
		Short: "List the prioritised maintenance recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs := dataset.Recommendations()

			switch outputFormat {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			default:
				for _, rec := range recs {
					fmt.Printf("[%s] %s (%s, impacto %s)\n", rec.Priority, rec.Title, rec.Timeframe, rec.Impact)
					for _, action := range rec.Actions {
						fmt.Printf("    - %s\n", action)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// statsCmd polls the telemetry API once and prints the resulting state
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Poll the telemetry API once and show connection and alert statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			// The pollers are not started, so the alert check runs in place
			pollErrs := []error{
				sess.RefreshNow(ctx),
				sess.CheckAlerts(ctx),
			}

			stats, err := sess.AlertStats()
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}
			status := sess.Status()

			fmt.Println("TEB Wind Farm Telemetry Statistics")
			fmt.Println("==================================")
			fmt.Printf("  Telemetry API:      %s\n", cfg.Upstream.BaseURL)
			fmt.Printf("  Connected:          %v\n", status.Connected)
			if rt, ok := sess.Realtime(); ok {
				fmt.Printf("  Turbines Reporting: %d\n", len(rt.Turbines))
				fmt.Printf("  Avg Availability:   %.2f%%\n", rt.KPIs.AvgAvailability)
			}
			if batch, ok := sess.Predictions(); ok {
				fmt.Printf("  Predictions:        %d\n", len(batch.Predictions))
			}
			fmt.Printf("  Alerts:             %v\n", stats["total_alerts"])
			fmt.Printf("  Critical Alerts:    %v\n", stats["critical_alerts"])

			for _, err := range pollErrs {
				if err != nil {
					fmt.Printf("  ⚠️  %v\n", err)
				}
			}
			return nil
		},
	}
}
