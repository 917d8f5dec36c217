package config

import (
	"errors"
	"fmt"
	"time"
)

// Working directory modes.
const (
	// ModeIsolated gives every run its own subdirectory under the root.
	ModeIsolated = "isolated"
	// ModeShared uses the root directly and guards it with a lock file.
	ModeShared = "shared"
)

// Config represents a ctgrun.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Workdir     WorkdirConfig     `yaml:"workdir"`
	Engine      EngineConfig      `yaml:"engine"`
	Contingency ContingencyConfig `yaml:"contingency"`
	Solver      SolverConfig      `yaml:"solver"`
	Report      ReportConfig      `yaml:"report"`
	Timeouts    TimeoutConfig     `yaml:"timeouts"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Adapter     AdapterConfig     `yaml:"adapter"`
}

// WorkdirConfig controls where pipeline artifacts are written.
type WorkdirConfig struct {
	Root string `yaml:"root"`
	Mode string `yaml:"mode"`
	// Keep retains the per-run directory after a successful run.
	Keep bool `yaml:"keep"`
}

// EngineConfig selects the case the engine operates on.
type EngineConfig struct {
	Case string `yaml:"case"`
}

// ContingencyConfig overrides the packaged contingency script.
type ContingencyConfig struct {
	Script string `yaml:"script"`
}

// SolverConfig locates the batch contingency solver.
type SolverConfig struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`
}

// ReportConfig locates the reporting/plotting tool installation.
type ReportConfig struct {
	InstallDir string `yaml:"install_dir"`
	Java       string `yaml:"java"`
	MainClass  string `yaml:"main_class"`
}

// TimeoutConfig holds per-process-stage deadlines. Zero means no deadline.
type TimeoutConfig struct {
	Solver Duration `yaml:"solver"`
	Report Duration `yaml:"report"`
}

// ArchiveConfig holds violation report archive settings.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds notification adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Workdir: WorkdirConfig{
			Root: "./ctgrun-work",
			Mode: ModeIsolated,
			Keep: true,
		},
		Solver: SolverConfig{
			Path: "ctgsolve",
		},
		Report: ReportConfig{
			InstallDir: "/opt/ge/plotting",
			Java:       "java",
			MainClass:  "com.ge.pslf.plot.BatchReport",
		},
		Archive: ArchiveConfig{
			Dataset: "ctgrun",
		},
	}
}

// ApplyDefaults fills empty fields from Defaults.
func (c *Config) ApplyDefaults() {
	d := Defaults()
	if c.Workdir.Root == "" {
		c.Workdir.Root = d.Workdir.Root
	}
	if c.Workdir.Mode == "" {
		c.Workdir.Mode = d.Workdir.Mode
	}
	if c.Solver.Path == "" {
		c.Solver.Path = d.Solver.Path
	}
	if c.Report.InstallDir == "" {
		c.Report.InstallDir = d.Report.InstallDir
	}
	if c.Report.Java == "" {
		c.Report.Java = d.Report.Java
	}
	if c.Report.MainClass == "" {
		c.Report.MainClass = d.Report.MainClass
	}
	if c.Archive.Dataset == "" {
		c.Archive.Dataset = d.Archive.Dataset
	}
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch c.Workdir.Mode {
	case "", ModeIsolated, ModeShared:
	default:
		return fmt.Errorf("workdir.mode must be %s or %s, got %q", ModeIsolated, ModeShared, c.Workdir.Mode)
	}
	switch c.Archive.Backend {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("archive.backend must be fs or s3, got %q", c.Archive.Backend)
	}
	if c.Archive.Backend != "" && c.Archive.Path == "" {
		return errors.New("archive.path is required when archive.backend is set")
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		return fmt.Errorf("adapter.type must be webhook or redis, got %q", c.Adapter.Type)
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		return errors.New("adapter.url is required when adapter.type is set")
	}
	return nil
}
