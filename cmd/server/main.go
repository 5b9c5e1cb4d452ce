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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/KyleWhite22/GameGeniusAI/internal/api/handlers/auth"
	"github.com/KyleWhite22/GameGeniusAI/internal/api/routes"
	"github.com/KyleWhite22/GameGeniusAI/internal/config"
	"github.com/KyleWhite22/GameGeniusAI/internal/core/identity"
	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
	"github.com/KyleWhite22/GameGeniusAI/internal/db"
	"github.com/KyleWhite22/GameGeniusAI/internal/metrics"
	"github.com/KyleWhite22/GameGeniusAI/internal/steam"
)

const (
	janitorInterval = time.Hour
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if cfg.DeployedMode {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config) error {
	started := time.Now()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, closeStore, err := db.OpenSessionStore(openCtx, cfg.StoreURL)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			slog.Warn("failed to close session store", "error", err)
		}
	}()

	codec, err := session.NewCookieCodec([]byte(cfg.SessionSecret), cfg.CookiePolicy())
	if err != nil {
		return err
	}
	manager := session.NewManager(store, codec, cfg.SessionTTL,
		session.WithStoreTimeout(cfg.StoreTimeout),
		session.WithErrorRecorder(met),
	)

	steamVerifier, err := steam.NewVerifier(steam.Config{
		ReturnURL: cfg.SteamReturnURL,
		Realm:     cfg.SteamRealm,
		APIKey:    cfg.SteamAPIKey,
		OpenIDURL: cfg.SteamOpenIDURL,
		APIURL:    cfg.SteamAPIURL,
		Timeout:   cfg.ProviderTimeout,
	})
	if err != nil {
		return err
	}
	defer steamVerifier.Close()

	providers := identity.NewRegistry()
	providers.Register(steam.ProviderName, steamVerifier)

	if sweeper, ok := store.(session.Sweeper); ok {
		go session.RunJanitor(ctx, sweeper, janitorInterval, met.SessionsSwept)
	}

	handler, closeRouter := routes.NewRouter(routes.Deps{
		Started:   started,
		Providers: providers,
		Sessions:  manager,
		Metrics:   met,
		Gatherer:  reg,
		Auth: auth.Config{
			PostLoginURL: cfg.PostLoginURL(),
			LoginURL:     cfg.LoginURL(),
		},
		Allowlist:    cfg.Allowlist(),
		DeployedMode: cfg.DeployedMode,
	})
	defer closeRouter()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("gateway listening",
			"addr", srv.Addr,
			"deployed", cfg.DeployedMode,
			"providers", providers.Names(),
			"allowed_origins", cfg.Allowlist(),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
