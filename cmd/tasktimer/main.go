package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	adapthttp "tasktimer/internal/adapter/http"
	"tasktimer/internal/app"
	"tasktimer/internal/config"
	"tasktimer/internal/logs"
	"tasktimer/internal/storage"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

// setup loads config and builds the logger shared by every command.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logs.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	slog.SetDefault(log)
	return cfg, log, nil
}

var rootCmd = &cobra.Command{
	Use:          "tasktimer",
	Short:        "Stopwatch-style task timer with persisted time records",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		return storage.Migrate(cmd.Context(), cfg.Store, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, err := storage.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	authSvc := app.NewAuthService(store.Users, store.Sessions, cfg.Auth.SessionTTL, log)
	if err := authSvc.PurgeExpiredSessions(ctx); err != nil {
		log.Warn("purge expired sessions", slog.Any("error", err))
	}
	recordSvc := app.NewTimeRecordService(store.Records, authSvc,
		app.WithUserScope(cfg.Records.UserScoped),
		app.WithLogger(log),
	)

	oidcCfg, err := adapthttp.NewOIDC(ctx, cfg.Auth.OIDC.Issuer, cfg.Auth.OIDC.ClientID, cfg.Auth.OIDC.ClientSecret, cfg.Auth.OIDC.RedirectURL)
	if err != nil {
		return err
	}

	h := adapthttp.New(recordSvc, authSvc, cfg.HTTP.WebDir,
		adapthttp.WithLogger(log),
		adapthttp.WithOIDC(oidcCfg),
		adapthttp.WithSessionCookie(cfg.Auth.SecureCookie, cfg.Auth.SessionTTL),
	).Handler()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h,
		ReadTimeout:       cfg.HTTP.Timeouts.Read,
		ReadHeaderTimeout: cfg.HTTP.Timeouts.ReadHeader,
		WriteTimeout:      cfg.HTTP.Timeouts.Write,
		IdleTimeout:       cfg.HTTP.Timeouts.Idle,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			slog.String("addr", cfg.HTTP.Addr),
			slog.String("store", store.Driver),
			slog.Bool("sso", oidcCfg.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.Timeouts.Shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (or TASKTIMER_CONFIG)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
