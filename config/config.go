// Package config holds the settings of a store or load run: the layout
// cells are laid out over, the symbol table, and the backend the cells live in.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/holmberd/go-voxelfile/sequencer"
	"github.com/holmberd/go-voxelfile/symboltable"
	"github.com/holmberd/go-voxelfile/voxel"
)

type Backend string

const (
	BackendMemory     Backend = "memory"
	BackendRedis      Backend = "redis"
	BackendSQLite     Backend = "sqlite"
	BackendMCFunction Backend = "mcfunction"
)

const maxFileSize = 1 << 20

// Config is loaded from JSON. Fields omitted from the JSON keep their
// Default values, so partial configs are safe.
type Config struct {
	// Layout
	OriginX   int `json:"origin_x"`
	OriginZ   int `json:"origin_z"`
	Footprint int `json:"footprint"`
	Floor     int `json:"floor"`
	Ceiling   int `json:"ceiling"`

	// Symbol table. A legacy lookup table is read when Terminator is set.
	TablePath  string       `json:"table_path"`
	Terminator voxel.Symbol `json:"terminator,omitempty"`

	// Backend
	Backend        Backend `json:"backend"`
	Location       string  `json:"location"`
	RedisAddr      string  `json:"redis_addr,omitempty"`
	SQLitePath     string  `json:"sqlite_path,omitempty"`
	MCFunctionPath string  `json:"mcfunction_path,omitempty"`
	BatchSize      int     `json:"batch_size,omitempty"`
	AutoProvision  bool    `json:"auto_provision,omitempty"`
}

// Default returns a layout at the world origin spanning a full overworld
// column, kept in memory.
func Default() *Config {
	return &Config{
		Footprint: voxel.ChunkSize,
		Floor:     -64,
		Ceiling:   320,
		Backend:   BackendMemory,
		Location:  "world",
	}
}

// Load decodes a config over the defaults and validates it.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile loads a config from a .json file.
func LoadFile(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config: file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config: file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Layout returns the sequencer parameters of the config.
func (c *Config) Layout() sequencer.Params {
	return sequencer.Params{
		Origin:    voxel.Coordinate{X: c.OriginX, Y: c.Floor, Z: c.OriginZ},
		Footprint: c.Footprint,
		Floor:     c.Floor,
		Ceiling:   c.Ceiling,
	}
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.Layout().Validate(); err != nil {
		return err
	}
	if c.Location == "" {
		return fmt.Errorf("location must not be empty")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative, got %d", c.BatchSize)
	}
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for backend %q", c.Backend)
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for backend %q", c.Backend)
		}
	case BackendMCFunction:
		if c.MCFunctionPath == "" {
			return fmt.Errorf("mcfunction_path is required for backend %q", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// Table loads the symbol table named by TablePath.
func (c *Config) Table() (*symboltable.Table, error) {
	if c.TablePath == "" {
		return nil, fmt.Errorf("config: table_path is not set")
	}
	if c.Terminator == "" {
		return symboltable.LoadFile(c.TablePath)
	}
	f, err := os.Open(c.TablePath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return symboltable.LoadLegacy(f, c.Terminator)
}
