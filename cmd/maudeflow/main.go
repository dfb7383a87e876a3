package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"maudeflow/internal/audit"
	"maudeflow/internal/config"
	"maudeflow/internal/db"
	"maudeflow/internal/download"
	"maudeflow/internal/export"
	"maudeflow/internal/ingestion"
	"maudeflow/internal/repository"
)

var (
	configPath string
	cfg        config.Config
	logger     *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "maudeflow",
		Short:         "FDA MAUDE adverse-event ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err = buildLogger(cfg.Logging.Level)
			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")
	root.AddCommand(newFetchCmd(), newLoadCmd(), newAuditCmd(), newRunsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("bad logging level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(parsed)
	return zcfg.Build()
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [files...]",
		Short: "Download release files into the data directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Download.BaseURL == "" {
				return fmt.Errorf("download.base_url is not configured")
			}
			client := download.NewClient(download.Config{
				BaseURL:     cfg.Download.BaseURL,
				Dir:         cfg.Download.Dir,
				MaxParallel: cfg.Download.MaxParallel,
				MaxAttempts: cfg.Download.MaxAttempts,
				Timeout:     cfg.Download.Timeout,
			}, logger.Named("download"))

			results, err := client.FetchAll(cmd.Context(), args)
			if err != nil {
				return err
			}
			failed := 0
			for _, result := range results {
				if result.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAILED  %s: %v\n", result.Name, result.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fetched %s (%d attempts)\n", result.Name, result.Attempts)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, len(results))
			}
			return nil
		},
	}
}

func newLoadCmd() *cobra.Command {
	var (
		dryRun     bool
		reportPath string
		skipAudit  bool
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Ingest downloaded release files into the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var (
				store   repository.Store
				logRepo repository.IngestionLogRepository
			)
			if dryRun {
				store = repository.NewMemoryStore()
				logRepo = repository.NewMemoryIngestionLog()
				logger.Info("dry run: loading into in-memory store")
			} else {
				if err := db.RunMigrations(cfg.Database, "./migrations"); err != nil {
					return err
				}
				conn, err := db.NewConnection(ctx, cfg.Database)
				if err != nil {
					return err
				}
				defer conn.Close()
				store = repository.NewPostgresStore(conn)
				logRepo = repository.NewPostgresIngestionLog(conn.Pool)
			}

			var auditor ingestion.Auditor
			if !skipAudit {
				auditor = audit.NewAuditor(store, auditThresholds(), logger.Named("audit"))
			}

			orch := ingestion.NewOrchestrator(
				download.NewDirSource(cfg.Download.Dir),
				store,
				logRepo,
				auditor,
				ingestion.OrchestratorConfig{
					Loader: ingestion.LoaderConfig{
						BatchSize:         cfg.Ingest.BatchSize,
						Strict:            cfg.Ingest.Strict(),
						ReferentialFilter: cfg.Ingest.ReferentialFilter,
						ProductCodes:      cfg.Ingest.ProductCodeSet(),
					},
					RejectUnknownSchema: cfg.Ingest.RejectUnknownSchema,
					WatchdogInterval:    30 * time.Second,
				},
				logger.Named("ingest"),
			)

			summary, err := orch.Run(ctx)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			if reportPath != "" {
				if err := export.WriteRunReport(summary, reportPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", reportPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and load into memory only, no database writes")
	cmd.Flags().StringVar(&reportPath, "report", "", "write an .xlsx run report to this path")
	cmd.Flags().BoolVar(&skipAudit, "skip-audit", false, "skip the post-load integrity audit")
	return cmd
}

func newAuditCmd() *cobra.Command {
	var reportPath string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run integrity checks against the populated store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			conn, err := db.NewConnection(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			auditor := audit.NewAuditor(repository.NewPostgresStore(conn), auditThresholds(), logger.Named("audit"))
			issues, err := auditor.Audit(ctx)
			if err != nil {
				return err
			}
			for _, issue := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), issue.String())
			}
			if reportPath != "" {
				summary := &ingestion.RunSummary{Issues: issues}
				if err := export.WriteRunReport(summary, reportPath); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "write an .xlsx issue report to this path")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs <run-id>",
		Short: "Show the per-file audit trail of an ingestion run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("bad run id %q: %w", args[0], err)
			}
			ctx := cmd.Context()
			conn, err := db.NewConnection(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			entries, err := repository.NewPostgresIngestionLog(conn.Pool).List(ctx, runID, limit)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %-28s processed=%d loaded=%d skipped=%d errors=%d (%s)\n",
					entry.StartedAt.Format("2006-01-02 15:04:05"),
					entry.Category, entry.FileName,
					entry.Processed, entry.Loaded, entry.Skipped, entry.Errors,
					entry.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum entries to show")
	return cmd
}

func auditThresholds() audit.Thresholds {
	return audit.Thresholds{
		MinRows:                cfg.Audit.MinRows,
		MaxOrphanPercent:       cfg.Audit.MaxOrphanPercent,
		ImportantColumns:       cfg.Audit.ImportantColumns,
		MinCompletenessPercent: cfg.Audit.MinCompleteness,
	}
}

func printSummary(cmd *cobra.Command, summary *ingestion.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s %s in %s\n", summary.RunID, summary.State, summary.FinishedAt.Sub(summary.StartedAt))
	for _, file := range summary.Files {
		fmt.Fprintf(out, "  %-28s %-8s processed=%d loaded=%d skipped=%d errors=%d\n",
			file.Filename, file.Status,
			file.Result.Processed, file.Result.Loaded, file.Result.Skipped, file.Result.Errors)
	}
	processed, loaded, skipped, errs := summary.Totals()
	fmt.Fprintf(out, "total: processed=%d loaded=%d skipped=%d errors=%d cross_populated=%d\n",
		processed, loaded, skipped, errs, summary.CrossPopulated)
	for _, issue := range summary.Issues {
		fmt.Fprintln(out, " ", issue.String())
	}
}
