package config

import (
	"runtime"
	"time"

	"github.com/sdejongh/fwdiffer/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Compare     CompareConfig     `yaml:"compare"`
	Performance PerformanceConfig `yaml:"performance"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
	Exclude     []string          `yaml:"exclude"`
}

// CompareConfig holds matching and scoring settings
type CompareConfig struct {
	SimilarityThreshold int            `yaml:"similarity_threshold"`
	MatchBy             models.KeyMode `yaml:"match_by"`             // "basename" or "path"
	AbortOnFirstError   bool           `yaml:"abort_on_first_error"` // false collects failed pairs
	ExecutableTypes     []string       `yaml:"executable_types"`     // MIME types classified as executables
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	MaxWorkers         int           `yaml:"max_workers"`
	BufferSize         int           `yaml:"buffer_size"`
	FingerprintTimeout time.Duration `yaml:"fingerprint_timeout"` // 0 = no limit
	ReadLimit          int64         `yaml:"read_limit"`          // bytes per second across all workers, 0 = unlimited
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format       string `yaml:"format"`        // "human" or "json"
	Progress     bool   `yaml:"progress"`      // Show progress bar
	Color        bool   `yaml:"color"`         // Colorize the human report on terminals
	CountChanges bool   `yaml:"count_changes"` // Append totals to the report
	Quiet        bool   `yaml:"quiet"`         // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"` // "json" or "text"
	Level   string `yaml:"level"`  // "debug", "info", "warn", "error"
	File    string `yaml:"file"`   // Log file path (empty = stderr)
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Compare: CompareConfig{
			SimilarityThreshold: 30,
			MatchBy:             models.KeyBasename,
			AbortOnFirstError:   true,
			ExecutableTypes: []string{
				"application/x-executable",
				"application/x-sharedlib",
			},
		},
		Performance: PerformanceConfig{
			MaxWorkers: runtime.NumCPU(),
			BufferSize: 65536,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Color:    true,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Format:  "text",
			Level:   "warn",
		},
		Exclude: []string{},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Compare.SimilarityThreshold < 0 || c.Compare.SimilarityThreshold > 100 {
		return &models.ValidationError{
			Field:   "compare.similarity_threshold",
			Message: "must be between 0 and 100",
		}
	}

	switch c.Compare.MatchBy {
	case models.KeyBasename, models.KeyRelativePath:
	default:
		return &models.ValidationError{
			Field:   "compare.match_by",
			Message: "must be 'basename' or 'path'",
		}
	}

	if len(c.Compare.ExecutableTypes) == 0 {
		return &models.ValidationError{
			Field:   "compare.executable_types",
			Message: "must list at least one MIME type",
		}
	}

	if c.Performance.MaxWorkers < 1 {
		return &models.ValidationError{
			Field:   "performance.max_workers",
			Message: "must be at least 1",
		}
	}

	if c.Performance.BufferSize < 1024 {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if c.Performance.FingerprintTimeout < 0 {
		return &models.ValidationError{
			Field:   "performance.fingerprint_timeout",
			Message: "must not be negative",
		}
	}

	if c.Performance.ReadLimit < 0 {
		return &models.ValidationError{
			Field:   "performance.read_limit",
			Message: "must not be negative",
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	return nil
}
