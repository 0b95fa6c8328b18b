// Package config loads the JSON configuration for table sinks.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SinkConfig holds storage settings for a table sink. Every field is
// optional; the Get* methods supply the defaults for omitted values.
type SinkConfig struct {
	// SQLite backend
	JournalMode *string `json:"journal_mode,omitempty"` // DELETE, WAL, ...
	BusyTimeout *string `json:"busy_timeout,omitempty"` // duration string like "5s"
	Synchronous *string `json:"synchronous,omitempty"`  // OFF, NORMAL, FULL, EXTRA

	// Engine
	ColumnSeparator *string `json:"column_separator,omitempty"`
	ChunkSize       *int    `json:"chunk_size,omitempty"` // rows per bulk-read chunk

	Debug *bool `json:"debug,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }

var validJournalModes = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
var validSynchronous = []string{"OFF", "NORMAL", "FULL", "EXTRA"}

// EmptySinkConfig returns a SinkConfig with all fields set to nil.
func EmptySinkConfig() *SinkConfig {
	return &SinkConfig{}
}

// DefaultSinkConfig returns a SinkConfig with every field set explicitly.
func DefaultSinkConfig() *SinkConfig {
	return &SinkConfig{
		JournalMode:     ptrString("WAL"),
		BusyTimeout:     ptrString("5s"),
		Synchronous:     ptrString("NORMAL"),
		ColumnSeparator: ptrString("."),
		ChunkSize:       ptrInt(1000),
		Debug:           ptrBool(false),
	}
}

// LoadSinkConfig loads a SinkConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the JSON file fall back to the getter defaults.
func LoadSinkConfig(path string) (*SinkConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySinkConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *SinkConfig) Validate() error {
	if c.JournalMode != nil && !oneOf(*c.JournalMode, validJournalModes) {
		return fmt.Errorf("journal_mode must be one of %s, got %q", strings.Join(validJournalModes, ", "), *c.JournalMode)
	}
	if c.Synchronous != nil && !oneOf(*c.Synchronous, validSynchronous) {
		return fmt.Errorf("synchronous must be one of %s, got %q", strings.Join(validSynchronous, ", "), *c.Synchronous)
	}
	if c.BusyTimeout != nil && *c.BusyTimeout != "" {
		d, err := time.ParseDuration(*c.BusyTimeout)
		if err != nil {
			return fmt.Errorf("invalid busy_timeout '%s': %w", *c.BusyTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("busy_timeout must be non-negative, got %s", d)
		}
	}
	if c.ColumnSeparator != nil {
		sep := *c.ColumnSeparator
		if sep == "" || strings.ContainsAny(sep, "/\"") {
			return fmt.Errorf("column_separator must be non-empty and contain neither '/' nor '\"', got %q", sep)
		}
	}
	if c.ChunkSize != nil && *c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", *c.ChunkSize)
	}
	return nil
}

func oneOf(v string, options []string) bool {
	for _, o := range options {
		if strings.EqualFold(v, o) {
			return true
		}
	}
	return false
}

func (c *SinkConfig) GetJournalMode() string {
	if c.JournalMode == nil || *c.JournalMode == "" {
		return "WAL"
	}
	return strings.ToUpper(*c.JournalMode)
}

func (c *SinkConfig) GetSynchronous() string {
	if c.Synchronous == nil || *c.Synchronous == "" {
		return "NORMAL"
	}
	return strings.ToUpper(*c.Synchronous)
}

func (c *SinkConfig) GetBusyTimeout() time.Duration {
	if c.BusyTimeout == nil || *c.BusyTimeout == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.BusyTimeout)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

func (c *SinkConfig) GetColumnSeparator() string {
	if c.ColumnSeparator == nil || *c.ColumnSeparator == "" {
		return "."
	}
	return *c.ColumnSeparator
}

func (c *SinkConfig) GetChunkSize() int {
	if c.ChunkSize == nil {
		return 1000
	}
	return *c.ChunkSize
}

func (c *SinkConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}
