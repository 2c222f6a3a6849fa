// Package config loads the runtime configuration shared by the collector, plotter and bot
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/abelzeko/onewire-logger/internal/entities"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither a flag nor ONEWIRE_CONFIG names a file
const DefaultPath = "config.yaml"

// Config holds everything the binaries need, resolved once at startup
type Config struct {
	MountPath string          `yaml:"mount_path"`
	Database  string          `yaml:"database"`
	OutputDir string          `yaml:"output_dir"`
	Sensors   []SensorEntry   `yaml:"sensors"`
	Collect   CollectSettings `yaml:"collect"`
	Plot      PlotSettings    `yaml:"plot"`
}

// CollectSettings controls the collector
type CollectSettings struct {
	Schedule string `yaml:"schedule"` // Cron expression; empty means run once
}

// PlotSettings controls the plotter
type PlotSettings struct {
	Sensors  []string             `yaml:"sensors"`
	Days     int                  `yaml:"days"`
	Type     entities.ReadingType `yaml:"type"`
	Schedule string               `yaml:"schedule"`
}

// SensorEntry accepts either "<id>:<type>:<name>" or a mapping with id, type and name
type SensorEntry struct {
	entities.SensorDescriptor
}

// UnmarshalYAML implements yaml.Unmarshaler
func (e *SensorEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		d, err := entities.ParseDescriptor(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %v", value.Line, err)
		}
		e.SensorDescriptor = d
		return nil
	}
	var d entities.SensorDescriptor
	if err := value.Decode(&d); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("line %d: %v", value.Line, err)
	}
	e.SensorDescriptor = d
	return nil
}

// Descriptors returns the configured sensors
func (c *Config) Descriptors() []entities.SensorDescriptor {
	ds := make([]entities.SensorDescriptor, len(c.Sensors))
	for i, s := range c.Sensors {
		ds[i] = s.SensorDescriptor
	}
	return ds
}

// Default returns a configuration with every default filled in
func Default() *Config {
	return &Config{
		MountPath: "/mnt/1wire",
		Database:  filepath.Join("data", "temperature.db"),
		OutputDir: "graphs",
		Plot: PlotSettings{
			Days: 1,
			Type: entities.Temperature,
		},
	}
}

// Path picks the configuration file from the flag value or ONEWIRE_CONFIG
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv("ONEWIRE_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads .env (if present), the YAML file at path (if present) and
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %v", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		log.Printf("Loading configuration from %s", path)
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("Configuration file %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("failed to read %s: %v", path, err)
	}

	cfg.applyEnv()
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"ONEWIRE_MOUNT_PATH": &c.MountPath,
		"ONEWIRE_DATABASE":   &c.Database,
		"ONEWIRE_OUTPUT_DIR": &c.OutputDir,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
}

// resolve expands paths and validates settings
func (c *Config) resolve() error {
	for _, p := range []*string{&c.MountPath, &c.Database, &c.OutputDir} {
		expanded, err := expandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}

	if c.Plot.Days == 0 {
		c.Plot.Days = 1
	}
	if c.Plot.Days < 0 {
		return fmt.Errorf("plot.days must be positive, got %d", c.Plot.Days)
	}
	if c.Plot.Type == "" {
		c.Plot.Type = entities.Temperature
	}
	if _, err := entities.ParseReadingType(string(c.Plot.Type)); err != nil {
		return fmt.Errorf("plot.type: %v", err)
	}

	for name, spec := range map[string]string{"collect.schedule": c.Collect.Schedule, "plot.schedule": c.Plot.Schedule} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %v", name, spec, err)
		}
	}
	return nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %v", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
