package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/project-penguin/notify-console/internal/credstore"
	"github.com/project-penguin/notify-console/internal/dispatch"
	"github.com/project-penguin/notify-console/internal/web"
)

// App orchestrates the lifecycle of the web server and related services.
type App struct {
	cfg *Config
	web *web.Server
}

// New creates a new App instance. The static API key is resolved once
// here and never re-read for the process lifetime.
func New(ctx context.Context, cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	keySource, err := cfg.Auth.NewKeySource()
	if err != nil {
		return nil, fmt.Errorf("failed to create API key source: %w", err)
	}
	apiKey, err := keySource.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve API key: %w", err)
	}

	policy, err := cfg.Auth.Policy()
	if err != nil {
		return nil, fmt.Errorf("invalid recovery policy: %w", err)
	}

	dispatcher, err := dispatch.New(cfg.Backend.BaseURL,
		dispatch.WithPolicy(policy),
		dispatch.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	webServer, err := web.New(dispatcher, web.CredentialPolicy{
		SessionScope: cfg.Auth.Scope == CredentialScopeSession,
		APIKey:       apiKey,
		Cookie: credstore.CookieOptions{
			Name:   cfg.Auth.Cookie.Name,
			MaxAge: cfg.Auth.Cookie.MaxAge,
			Secure: cfg.Auth.Cookie.Secure,
		},
	}, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create web server: %w", err)
	}

	return &App{
		cfg: cfg,
		web: webServer,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting web server",
		"address", address,
		"backend", a.cfg.Backend.BaseURL,
		"scope", string(a.cfg.Auth.Scope),
	)
	webErrCh, err := a.web.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("web server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.web.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-webErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "web server runtime error", "error", err)
				return fmt.Errorf("web server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
