package internal

import "github.com/starford/moodlog/internal/recordstore"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	store  recordstore.Store
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithStore supplies an already opened record store instead of opening one
// from the configuration. The caller keeps ownership and closes it.
func WithStore(s recordstore.Store) Option {
	return func(a *application) {
		a.store = s
	}
}
