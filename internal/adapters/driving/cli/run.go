package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/adapters/driven/embedding/openai"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/adapters/driven/storage/postgres"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/adapters/driven/storage/sqlite"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/adapters/driven/storage/supabase"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/chunker"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/config"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/services"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/watchers/drive"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/watchers/gitrepo"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/watchers/local"
)

var (
	flagPipeline  string
	flagMode      string
	flagDirectory string
	flagInterval  time.Duration
	flagFolderID  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion pipeline",
	Long: `Starts the ingestion pipeline for one source.

In continuous mode the pipeline polls the source at a fixed interval
until interrupted. In single mode it runs exactly one poll cycle and
exits, which suits cron jobs and CI.`,
	RunE: runPipeline,
}

func init() {
	registerRunFlags()
	rootCmd.AddCommand(runCmd)
}

func registerRunFlags() {
	runCmd.Flags().StringVar(&flagPipeline, "pipeline", "", "pipeline type: local, google_drive or git")
	runCmd.Flags().StringVar(&flagMode, "mode", "", "run mode: continuous or single")
	runCmd.Flags().StringVar(&flagDirectory, "directory", "", "directory to watch (local pipeline)")
	runCmd.Flags().DurationVar(&flagInterval, "interval", 0, "poll interval for continuous mode")
	runCmd.Flags().StringVar(&flagFolderID, "folder-id", "", "Drive folder to watch (google_drive pipeline)")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Section(fmt.Sprintf("pipeline %s (%s, %s mode)", cfg.Pipeline.ID, cfg.Pipeline.Type, cfg.Pipeline.Mode))

	orch, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Pipeline.Mode == config.ModeSingle {
		res, err := orch.RunOnce(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("cycle complete: %d changed, %d stored, %d failed\n", res.Changed, res.Stored, res.Failed)
		return nil
	}

	logger.Info("starting %s pipeline %s (poll interval %s)", cfg.Pipeline.Type, cfg.Pipeline.ID, cfg.Pipeline.Interval)
	return orch.Run(ctx)
}

// applyFlags overrides file and environment settings with flags that
// were explicitly set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("pipeline") {
		cfg.Pipeline.Type = flagPipeline
	}
	if cmd.Flags().Changed("mode") {
		cfg.Pipeline.Mode = flagMode
	}
	if cmd.Flags().Changed("directory") {
		cfg.Local.Directory = flagDirectory
	}
	if cmd.Flags().Changed("interval") {
		cfg.Pipeline.Interval = flagInterval
	}
	if cmd.Flags().Changed("folder-id") {
		cfg.Drive.FolderID = flagFolderID
	}
}

// buildOrchestrator wires storage, watcher and embedder into an
// orchestrator. The returned cleanup closes everything that was opened,
// in reverse order.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*services.Orchestrator, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("close: %v", err)
			}
		}
	}
	fail := func(err error) (*services.Orchestrator, func(), error) {
		cleanup()
		return nil, nil, err
	}

	var (
		docs   driven.DocumentStore
		states driven.StateStore
		repos  driven.RepositoryStore
	)

	switch cfg.Storage.Backend {
	case config.BackendSupabase:
		scfg := supabase.Config{URL: cfg.Storage.Supabase.URL, ServiceKey: cfg.Storage.Supabase.ServiceKey}
		ds, err := supabase.NewDocumentStore(scfg)
		if err != nil {
			return fail(err)
		}
		docs = ds
		closers = append(closers, ds)

		ss, err := supabase.NewStateStore(scfg)
		if err != nil {
			return fail(err)
		}
		states = ss
		closers = append(closers, ss)

		rs, err := supabase.NewRepositoryStore(scfg)
		if err != nil {
			return fail(err)
		}
		repos = rs
	case config.BackendPostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:        cfg.Storage.Postgres.DSN,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return fail(err)
		}
		docs, states, repos = store, store, store
		closers = append(closers, store)
	}

	if cfg.State.Driver == config.StateDriverSQLite {
		ss, err := sqlite.NewStateStore(cfg.State.SQLitePath)
		if err != nil {
			return fail(err)
		}
		states = ss
		closers = append(closers, ss)
	}

	watcher, err := buildWatcher(ctx, cfg, repos)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, watcher)

	embedder, err := openai.NewEmbeddingService(openai.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
	})
	if err != nil {
		return fail(err)
	}
	closers = append(closers, embedder)

	// Surface a bad API key or endpoint before the first poll cycle.
	if err := embedder.Ping(ctx); err != nil {
		return fail(err)
	}

	proc := services.NewProcessor(embedder, docs,
		chunker.New(cfg.Content.Size, cfg.Content.Overlap),
		chunker.New(cfg.Code.Size, cfg.Code.Overlap))
	proc.SetTabularTypes(cfg.ContentTypes.Tabular)
	return services.NewOrchestrator(watcher, proc, states, cfg.Pipeline.Interval), cleanup, nil
}

func buildWatcher(ctx context.Context, cfg *config.Config, repos driven.RepositoryStore) (driven.Watcher, error) {
	switch cfg.Pipeline.Type {
	case config.PipelineLocal:
		return local.New(cfg.Pipeline.ID, cfg.Local.Directory, cfg.Local.ReconcileDeletes), nil
	case config.PipelineGoogleDrive:
		return drive.New(ctx, drive.Config{
			PipelineID:         cfg.Pipeline.ID,
			FolderID:           cfg.Drive.FolderID,
			CredentialsPath:    cfg.Drive.CredentialsPath,
			TokenPath:          cfg.Drive.TokenPath,
			SupportedMIMETypes: cfg.ContentTypes.Supported,
		})
	case config.PipelineGit:
		return gitrepo.New(gitrepo.Config{
			PipelineID: cfg.Pipeline.ID,
			WorkDir:    cfg.Git.WorkDir,
			Token:      cfg.Git.Token,
		}, repos)
	default:
		return nil, fmt.Errorf("unknown pipeline type %q", cfg.Pipeline.Type)
	}
}
