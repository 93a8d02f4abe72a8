package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultStatusListen = ":8080"
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	// Status configures the optional HTTP/WebSocket status endpoint.
	Status StatusConfig `yaml:"status"`

	// Resources is the list of monitored resources.
	Resources []Resource `yaml:"resources"`

	// Notifiers is the list of named notification backends that resources
	// can reference by name.
	Notifiers []Notifier `yaml:"notifiers"`
}

// StatusConfig controls the status endpoint.
type StatusConfig struct {
	// Enabled turns the status HTTP server on.
	Enabled bool `yaml:"enabled"`

	// Listen is the address the status server binds to.
	Listen string `yaml:"listen"`
}

// Resource describes one monitored resource.
type Resource struct {
	// Name is a unique, human-readable identifier for this resource.
	// It appears in every alert title produced for the resource.
	Name string `yaml:"name"`

	// Type is the checker kind: http | prometheus.
	Type string `yaml:"type"`

	// IntervalMS is the pause between the end of one probe and the start of
	// the next, in milliseconds.
	IntervalMS uint64 `yaml:"interval_ms"`

	// Notifiers lists the names of the backends alerts are delivered to.
	Notifiers []string `yaml:"notifiers"`

	// Config is the checker-kind-specific configuration, decoded by the
	// checker factory.
	Config yaml.Node `yaml:"config"`
}

// Interval returns the polling interval as a time.Duration.
func (r Resource) Interval() time.Duration {
	return time.Duration(r.IntervalMS) * time.Millisecond
}

// Notifier describes one named notification backend.
type Notifier struct {
	// Name is the unique identifier resources use to reference this backend.
	Name string `yaml:"name"`

	// Type is the backend kind: smtp | webhook | nats.
	Type string `yaml:"type"`

	// Config is the backend-kind-specific configuration, decoded by the
	// notifier factory.
	Config yaml.Node `yaml:"config"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Status: StatusConfig{
			Listen: DefaultStatusListen,
		},
	}
}

// validate checks required fields and structural constraints.
// Checker and notifier kinds are resolved later, at construction; validate
// only guarantees the document shape is usable.
func validate(cfg *Config) error {
	if len(cfg.Resources) == 0 {
		return fmt.Errorf("at least one resource is required")
	}

	notifierNames := make(map[string]struct{}, len(cfg.Notifiers))
	for i, n := range cfg.Notifiers {
		if n.Name == "" {
			return fmt.Errorf("notifiers[%d]: name is required", i)
		}
		if n.Type == "" {
			return fmt.Errorf("notifiers[%d] %q: type is required", i, n.Name)
		}
		if _, dup := notifierNames[n.Name]; dup {
			return fmt.Errorf("notifiers[%d]: duplicate name %q", i, n.Name)
		}
		notifierNames[n.Name] = struct{}{}
	}

	resourceNames := make(map[string]struct{}, len(cfg.Resources))
	for i, r := range cfg.Resources {
		if r.Name == "" {
			return fmt.Errorf("resources[%d]: name is required", i)
		}
		if r.Type == "" {
			return fmt.Errorf("resources[%d] %q: type is required", i, r.Name)
		}
		if r.IntervalMS == 0 {
			return fmt.Errorf("resources[%d] %q: interval_ms must be positive", i, r.Name)
		}
		if _, dup := resourceNames[r.Name]; dup {
			return fmt.Errorf("resources[%d]: duplicate name %q", i, r.Name)
		}
		resourceNames[r.Name] = struct{}{}
		for j, name := range r.Notifiers {
			if name == "" {
				return fmt.Errorf("resources[%d] %q: notifiers[%d] is empty", i, r.Name, j)
			}
		}
	}

	if cfg.Status.Enabled && cfg.Status.Listen == "" {
		return fmt.Errorf("status.listen is required when status is enabled")
	}

	return nil
}
