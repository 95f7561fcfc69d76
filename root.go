// Command icdrive is a command-line iCloud Drive client.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/icdrive/icdrive/internal/config"
	"github.com/icdrive/icdrive/internal/drive"
	"github.com/icdrive/icdrive/internal/icloud"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
	flagNoCache    bool
)

// httpClientTimeout caps metadata requests. Byte transfers use a separate
// client without a deadline since large files legitimately take longer.
const httpClientTimeout = 30 * time.Second

// newRootCmd builds the fully-assembled root command. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "icdrive",
		Short:   "iCloud Drive CLI client",
		Long:    "Unix-like file operations (ls, mv, rm, download, upload) on iCloud Drive.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "start from an empty cache and discard it on exit")

	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newMvCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newCacheCmd())

	return cmd
}

// app holds the wired collaborators for one command invocation. The entity
// store lives for exactly one invocation: loaded in newApp, persisted in
// close unless --no-cache is set.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	client  *icloud.Client
	store   *drive.Store
	rec     *drive.Reconciler
	noCache bool
}

// newApp loads config and session and wires the client, store, and
// reconciler for one command invocation.
func newApp(_ context.Context) (*app, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, err
	}

	logger := buildLogger(cfg)

	session, err := icloud.LoadSession(cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w (run the sign-in helper first)", err)
	}

	client := icloud.NewClient(
		&http.Client{Timeout: httpClientTimeout},
		session,
		sessionReloader{session},
		logger,
	)

	noCache := cfg.NoCache || flagNoCache

	var store *drive.Store
	if noCache {
		store = drive.NewStore()
	} else {
		store, err = drive.LoadStore(cfg.CachePath)
		if err != nil {
			return nil, err
		}
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		store:   store,
		rec:     drive.NewReconciler(store, client, logger),
		noCache: noCache,
	}, nil
}

// close persists the entity store back to disk. No-cache mode discards it.
func (a *app) close() {
	if a.noCache {
		return
	}

	if err := a.store.Save(a.cfg.CachePath); err != nil {
		a.logger.Warn("saving cache failed", slog.String("error", err.Error()))
	}
}

// sessionReloader reauthorizes by re-reading the session file, picking up
// cookies refreshed by the external sign-in helper.
type sessionReloader struct {
	session *icloud.FileSession
}

func (r sessionReloader) Reauthorize(_ context.Context) error {
	return r.session.Reload()
}

// newExecutor wires the transfer executor for one command, honoring the
// configured chunk size and a --chunk-size override.
func (a *app) newExecutor(chunkSize int) *drive.Executor {
	if chunkSize <= 0 {
		chunkSize = a.cfg.ChunkSize
	}

	return drive.NewExecutor(a.client, a.client, nil, drive.ExecutorOpts{
		ChunkSize:    chunkSize,
		RestoreMtime: a.cfg.RestoreMtime,
	}, a.logger)
}

// buildLogger creates an slog.Logger from the config log level; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
