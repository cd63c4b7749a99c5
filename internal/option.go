package internal

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config          *Config
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the JSON logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithShutdownTimeout bounds the graceful HTTP shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *application) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

func newApplication(opts []Option) *application {
	app := &application{shutdownTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(app)
	}
	return app
}
