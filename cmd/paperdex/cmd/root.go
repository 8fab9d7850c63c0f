// Package cmd provides the CLI commands for paperdex.
package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperdex/paperdex/internal/config"
	"github.com/paperdex/paperdex/internal/engine"
	"github.com/paperdex/paperdex/internal/index"
	"github.com/paperdex/paperdex/internal/logging"
	"github.com/paperdex/paperdex/internal/search"
	"github.com/paperdex/paperdex/internal/store"
	"github.com/paperdex/paperdex/pkg/version"
)

var (
	configPath string
	debugMode  bool
)

// NewRootCmd creates the root command for the paperdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paperdex",
		Short: "Multi-tenant document search service",
		Long: `Paperdex indexes folders, uploaded files, and OCR-extracted text into a
shared full-text index partitioned by tenant, and serves phrase, per-page,
and typo-tolerant search over it.

Run 'paperdex serve' to start the HTTP API.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("paperdex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// app bundles the wired subsystems behind the CLI commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.SQLiteStore
	engine  *engine.Index
	manager *index.Manager
	service *search.Service
	cleanup func()
}

// buildApp loads configuration and wires the store, engine, index manager,
// and search service. Callers must invoke cleanup when done.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
	if debugMode {
		logCfg.Level = "debug"
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logCleanup()
		return nil, err
	}

	eng, err := engine.New(cfg.Index.Path)
	if err != nil {
		_ = st.Close()
		logCleanup()
		return nil, err
	}

	mgrOpts := []index.ManagerOption{index.WithParallelism(cfg.Index.Parallelism)}
	if cfg.Index.Path != "" {
		mgrOpts = append(mgrOpts, index.WithLockFile(cfg.Index.Path+".lock"))
	}
	mgr := index.NewManager(st, eng, logger, mgrOpts...)

	svc, err := search.NewService(eng, logger, search.Options{
		MaxResults:       cfg.Search.MaxResults,
		MaxPageLocations: cfg.Search.MaxPageLocations,
		Fuzziness:        cfg.Search.Fuzziness,
		FuzzyPrefix:      cfg.Search.FuzzyPrefix,
		CacheSize:        cfg.Search.CacheSize,
		Timeout:          time.Duration(cfg.Search.TimeoutSec) * time.Second,
	})
	if err != nil {
		_ = eng.Close()
		_ = st.Close()
		logCleanup()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		engine:  eng,
		manager: mgr,
		service: svc,
		cleanup: func() {
			_ = eng.Close()
			_ = st.Close()
			logCleanup()
		},
	}, nil
}
