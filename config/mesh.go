// Package config loads mesh construction settings from JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/notargets/DGMesh/tria"
	"github.com/notargets/DGMesh/utils"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// MeshConfig describes how a triangulation is constructed. Omitted fields
// fall back to the defaults of the Get methods.
type MeshConfig struct {
	Dimension              *int      `json:"dimension,omitempty"`
	SpaceDimension         *int      `json:"space_dimension,omitempty"` // defaults to dimension
	Smoothing              []string  `json:"smoothing,omitempty"`       // tria.MeshSmoothing flag names
	CheckForDistortedCells *bool     `json:"check_for_distorted_cells,omitempty"`
	ParallelGeometry       *bool     `json:"parallel_geometry,omitempty"`
	Log                    LogConfig `json:"log"`
}

// LogConfig enables the logging streams
type LogConfig struct {
	Ops   *bool `json:"ops,omitempty"`
	Diag  *bool `json:"diag,omitempty"`
	Trace *bool `json:"trace,omitempty"`
}

func ptrInt(v int) *int    { return &v }
func ptrBool(v bool) *bool { return &v }

// DefaultMeshConfig returns a 2D configuration with no smoothing and only
// the ops log enabled
func DefaultMeshConfig() *MeshConfig {
	return &MeshConfig{
		Dimension: ptrInt(2),
		Log:       LogConfig{Ops: ptrBool(true)},
	}
}

// LoadMeshConfig loads a MeshConfig from a JSON file. The file must have a
// .json extension and be under 1MB. Fields omitted from the file keep
// their defaults.
func LoadMeshConfig(path string) (*MeshConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultMeshConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks dimensions and smoothing names
func (c *MeshConfig) Validate() error {
	dim, spacedim := c.GetDimension(), c.GetSpaceDimension()
	if dim < 1 || dim > 3 {
		return fmt.Errorf("dimension must be 1, 2 or 3, got %d", dim)
	}
	if spacedim < dim || spacedim > 3 {
		return fmt.Errorf("space_dimension must be in [%d,3], got %d", dim, spacedim)
	}
	if _, err := tria.ParseMeshSmoothing(c.Smoothing); err != nil {
		return fmt.Errorf("smoothing: %w", err)
	}
	return nil
}

func (c *MeshConfig) GetDimension() int {
	if c.Dimension == nil {
		return 2
	}
	return *c.Dimension
}

func (c *MeshConfig) GetSpaceDimension() int {
	if c.SpaceDimension == nil {
		return c.GetDimension()
	}
	return *c.SpaceDimension
}

func (c *MeshConfig) GetCheckForDistortedCells() bool {
	return c.CheckForDistortedCells != nil && *c.CheckForDistortedCells
}

func (c *MeshConfig) GetParallelGeometry() bool {
	return c.ParallelGeometry != nil && *c.ParallelGeometry
}

// TriaConfig validates the configuration and converts it
func (c *MeshConfig) TriaConfig() (tria.Config, error) {
	if err := c.Validate(); err != nil {
		return tria.Config{}, err
	}
	s, _ := tria.ParseMeshSmoothing(c.Smoothing)
	return tria.Config{
		Smoothing:              s,
		CheckForDistortedCells: c.GetCheckForDistortedCells(),
		ParallelGeometry:       c.GetParallelGeometry(),
	}, nil
}

// NewTriangulation returns an empty triangulation built from the
// configuration
func (c *MeshConfig) NewTriangulation() (*tria.Triangulation, error) {
	cfg, err := c.TriaConfig()
	if err != nil {
		return nil, err
	}
	return tria.New(c.GetDimension(), c.GetSpaceDimension(), cfg)
}

// LogWriters routes every enabled stream to w
func (l LogConfig) LogWriters(w io.Writer) utils.LogWriters {
	pick := func(on *bool) io.Writer {
		if on != nil && *on {
			return w
		}
		return nil
	}
	return utils.LogWriters{Ops: pick(l.Ops), Diag: pick(l.Diag), Trace: pick(l.Trace)}
}

// ApplyLogging installs the configured streams, writing to w
func (c *MeshConfig) ApplyLogging(w io.Writer) {
	utils.SetLogWriters(c.Log.LogWriters(w))
}
