package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Tracker TrackerConfig     `yaml:"tracker"`
	Project ProjectConfig     `yaml:"project"`
	Import  ImportConfig      `yaml:"import"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Tracker.Validate(); err != nil {
		return err
	}
	if err := c.Project.Validate(); err != nil {
		return err
	}
	return c.Import.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// TrackerConfig holds the target tracker endpoint and credentials.
// Credentials are expected to arrive through ${VAR} expansion, e.g.
// token: ${RAIDO_TRACKER_TOKEN}.
type TrackerConfig struct {
	BaseURL string `yaml:"base_url"`
	Email   string `yaml:"email"`
	Token   string `yaml:"token"`
}

// Validate validates the tracker configuration.
func (c *TrackerConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Email, validation.Required),
		validation.Field(&c.Token, validation.Required),
	); err != nil {
		return err
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("tracker: base_url %q is not a valid URL: %w", c.BaseURL, err)
	}
	return nil
}

// ProjectConfig identifies the target project.
type ProjectConfig struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Key, validation.Required, validation.Length(2, 10)),
	)
}

// ImportConfig holds import-run settings.
//
// Pace is the fixed delay inserted after every external write call to stay
// under the tracker's request-rate ceiling. It is not a correctness mechanism.
type ImportConfig struct {
	PlanPath    string        `yaml:"plan_path"`
	JournalPath string        `yaml:"journal_path"`
	Pace        time.Duration `yaml:"pace"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PlanPath, validation.Required),
		validation.Field(&c.Pace, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Project: ProjectConfig{
			Key: "IMP",
		},
		Import: ImportConfig{
			PlanPath:    "./plan.yaml",
			JournalPath: "./raido.db",
			Pace:        300 * time.Millisecond,
		},
	}
}
