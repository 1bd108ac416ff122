package logger

import (
	"io"
)

// Config holds logger configuration. The zero value logs JSON at info
// level to stdout.
type Config struct {
	Level       string    // debug, info, warn, error
	Format      string    // json, text
	ServiceName string    // value of the "service" field
	Environment string    // local, dev, prod
	Output      io.Writer // overrides every other output setting

	// File output, ignored when Environment is "local".
	File       string
	FileOnly   bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig returns the configuration used before config is loaded.
func DefaultConfig() *Config {
	return &Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "jobimport",
		Environment: "local",
		MaxSizeMB:   100,
		MaxBackups:  7,
		MaxAgeDays:  30,
		Compress:    true,
	}
}
