package internal

import (
	"io"

	"github.com/jonboulle/clockwork"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	clock  clockwork.Clock
	output io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithClock sets the clock builds use.
func WithClock(c clockwork.Clock) Option {
	return func(a *application) {
		a.clock = c
	}
}

// WithLogOutput sets where log records are written.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.output = w
	}
}
