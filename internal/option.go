package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	dryRun bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithDryRun makes the run load and validate the plan without touching the
// tracker.
func WithDryRun(dryRun bool) Option {
	return func(a *application) {
		a.dryRun = dryRun
	}
}
