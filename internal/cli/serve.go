package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/buemura/scanhub/internal/auth"
	"github.com/buemura/scanhub/internal/config"
	"github.com/buemura/scanhub/internal/jobs"
	"github.com/buemura/scanhub/internal/logging"
	"github.com/buemura/scanhub/internal/scanner"
	"github.com/buemura/scanhub/internal/store"
	"github.com/buemura/scanhub/internal/web"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var (
	addrFlag  string
	storeFlag string
	dbFlag    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scanhub API server",
	Long: `Starts the JSON API. Scan jobs are kept in memory by default;
use --store sqlite to keep them across restarts.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", ":8080", "listen address (host:port)")
	serveCmd.Flags().StringVar(&storeFlag, "store", "memory", "job store: memory or sqlite")
	serveCmd.Flags().StringVar(&dbFlag, "db", filepath.Join("data", "scanhub.db"), "SQLite database path")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	mgr := newManager(cfg, st, logger)
	defer mgr.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if n, err := mgr.RecoverOrphans(ctx); err != nil {
		return err
	} else if n > 0 {
		logger.WithField("jobs", n).Warn("failed scan jobs left unfinished by a previous run")
	}
	mgr.StartRetention(cfg.Retention.MaxAge, cfg.Retention.Interval)

	if cfg.SessionKey == "" {
		logger.Warn("no session_key configured; sessions will not survive a restart")
	}
	am := auth.NewManager(st, []byte(cfg.SessionKey), auth.WithLogger(logger))

	srv := web.NewServer(cfg.Addr, mgr, st, am, logger)
	fmt.Fprintf(cmd.OutOrStdout(), "scanhub API listening on %s (%s store)\n", cfg.Addr, cfg.Store.Driver)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown")
	}
	return nil
}

// openStore builds the configured job store.
func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		return store.NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func newManager(cfg *config.Config, st store.Store, logger logrus.FieldLogger) *jobs.Manager {
	reg := scanner.NewRegistry(scanner.DefaultProfiles(cfg.Scan.QuickDuration, cfg.Scan.DeepDuration)...)
	sc := scanner.NewSimulated(time.Now().UnixNano(), nil)
	return jobs.NewManager(st, reg, sc,
		jobs.WithLogger(logger),
		jobs.WithDispatchDelay(cfg.Scan.DispatchDelay),
	)
}
