package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/seedbed/seedbed/internal/entity"
	"github.com/seedbed/seedbed/internal/restapi"
)

// ErrNoAPI is returned by operations that need the entity API when neither
// a client nor api.url was configured.
var ErrNoAPI = errors.New("api.url is a required configuration field and cannot be empty (set --api-url, SEEDBED_API_URL, or api.url in the config file)")

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config

	client entity.Client
	rest   *restapi.Client // nil when a client was injected
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. A nil client
// selects the REST client built from cfg.API; tests inject their own.
// Plan and validate never touch the API, so a missing api.url only
// surfaces when an operation needs the client.
func NewApp(outW io.Writer, cfg *Config, client entity.Client) *App {
	a := &App{
		outW:   outW,
		logger: newLogger(cfg.Log, outW),
		cfg:    cfg,
		client: client,
	}
	a.logger.Debug("Logger configured successfully.")

	if a.client == nil && cfg.API.URL != "" {
		a.rest = restapi.New(restapi.Options{
			BaseURL: cfg.API.URL,
			Token:   cfg.API.Token,
			Headers: cfg.API.Headers,
			Timeout: cfg.API.Timeout,
		})
		a.client = a.rest
		a.logger.Debug("Entity API client configured.", "url", cfg.API.URL)
	}
	return a
}

// Close releases resources held by the underlying API client.
func (a *App) Close() error {
	if a.rest != nil {
		return a.rest.Close()
	}
	return nil
}

// Logger returns the application's root logger. This is primarily for testing.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Ping checks whether the configured entity API answers at its base URL and
// reports the HTTP status and round-trip latency.
func (a *App) Ping(ctx context.Context) (int, time.Duration, error) {
	if a.client == nil {
		return 0, 0, ErrNoAPI
	}
	type pinger interface {
		Ping(ctx context.Context) (int, time.Duration, error)
	}
	p, ok := a.client.(pinger)
	if !ok {
		return 0, 0, errors.New("the configured entity client does not support ping")
	}
	return p.Ping(ctx)
}
