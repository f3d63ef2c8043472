package mapping

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

type ErrorPolicy string

const (
	// Abort fails the batch on the first invalid feature.
	Abort ErrorPolicy = "abort"
	// Skip drops invalid features with a warning.
	Skip ErrorPolicy = "skip"
)

type MeshFormat string

const (
	OBJ MeshFormat = "obj"
	PLY MeshFormat = "ply"
)

// StoreyHeight is either a constant height in meters or the key of a
// numeric attribute.
type StoreyHeight struct {
	Value float64
	Key   string

	set bool
}

func (s *StoreyHeight) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v float64
	if err := unmarshal(&v); err == nil {
		s.Value, s.Key, s.set = v, "", true
		return nil
	}
	var k string
	if err := unmarshal(&k); err != nil {
		return errors.New("storey_height must be a number or an attribute key")
	}
	s.Value, s.Key, s.set = 0, k, k != ""
	return nil
}

// IsSet reports whether the mapping contained storey_height, also for
// an explicit 0.
func (s StoreyHeight) IsSet() bool {
	return s.set || s.Key != ""
}

func (s StoreyHeight) String() string {
	if s.Key != "" {
		return "attribute " + s.Key
	}
	return fmt.Sprintf("%gm", s.Value)
}

type Database struct {
	Connection string `yaml:"connection"`
	Table      string `yaml:"table"`
}

// Batch is one input source with its extrusion parameters and outputs.
type Batch struct {
	Name              string       `yaml:"name"`
	Input             string       `yaml:"input"`
	Format            string       `yaml:"format"`
	GroundStorey      string       `yaml:"ground_storey"`
	UndergroundStorey string       `yaml:"underground_storey"`
	StoreyHeight      StoreyHeight `yaml:"storey_height"`
	Offset            []float64    `yaml:"offset"`

	// BaseOffset is the key used by older mapping files.
	BaseOffset []float64   `yaml:"base_offset"`
	Reproject  *bool       `yaml:"reproject"`
	Zone       int         `yaml:"zone"`
	South      bool        `yaml:"south"`
	Output     string      `yaml:"output"`
	MeshFormat MeshFormat  `yaml:"mesh_format"`
	Materials  bool        `yaml:"materials"`
	OnError    ErrorPolicy `yaml:"on_error"`
	CityGML    bool        `yaml:"citygml"`
	Footprints bool        `yaml:"footprints"`
	Database   *Database   `yaml:"database"`
}

// ShouldReproject defaults to true.
func (b *Batch) ShouldReproject() bool {
	return b.Reproject == nil || *b.Reproject
}

// PlanarOffset returns the (easting, northing) offset subtracted after
// reprojection.
func (b *Batch) PlanarOffset() orb.Point {
	if len(b.Offset) < 2 {
		return orb.Point{}
	}
	return orb.Point{b.Offset[0], b.Offset[1]}
}

// BaseElevation is the optional third offset component, added to all
// heights.
func (b *Batch) BaseElevation() float64 {
	if len(b.Offset) < 3 {
		return 0
	}
	return b.Offset[2]
}

// ConfigError lists all problems found in a mapping file.
type ConfigError struct {
	File string
	Errs []error
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	if e.File == "" {
		return "invalid mapping: " + strings.Join(msgs, "; ")
	}
	return fmt.Sprintf("invalid mapping %s: %s", e.File, strings.Join(msgs, "; "))
}
