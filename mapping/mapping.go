package mapping

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/b2gm/lodmap/reader"
)

const DefaultTable = "lod1_buildings"

// Mapping is the parsed mapping file.
type Mapping struct {
	// Seed initializes the colour source for OBJ materials.
	Seed    int64    `yaml:"seed"`
	Batches []*Batch `yaml:"geometry"`

	filename string
}

// NewMapping reads and validates a YAML or JSON mapping file. Relative
// input and output paths are resolved against the directory of the file.
// All errors are returned as *ConfigError.
func NewMapping(filename string) (*Mapping, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, &ConfigError{File: filename, Errs: []error{err}}
	}
	m, err := Parse(data, filepath.Dir(filename))
	if err != nil {
		if cerr, ok := err.(*ConfigError); ok {
			cerr.File = filename
		}
		return nil, err
	}
	m.filename = filename
	return m, nil
}

// Parse parses mapping data. dir is used to resolve relative paths.
func Parse(data []byte, dir string) (*Mapping, error) {
	m := Mapping{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ConfigError{Errs: []error{err}}
	}
	if errs := m.prepare(dir); len(errs) > 0 {
		return nil, &ConfigError{Errs: errs}
	}
	return &m, nil
}

func (m *Mapping) Filename() string {
	return m.filename
}

// prepare sets defaults and returns all validation errors.
func (m *Mapping) prepare(dir string) []error {
	if len(m.Batches) == 0 {
		return []error{errors.New("no geometry batches")}
	}

	var errs []error
	outputs := map[string]string{}
	for i, b := range m.Batches {
		if b == nil {
			errs = append(errs, errors.Errorf("geometry entry %d is empty", i+1))
			continue
		}
		if b.Name == "" {
			b.Name = fmt.Sprintf("batch%d", i+1)
		}
		for _, err := range b.prepare(dir) {
			errs = append(errs, errors.Wrapf(err, "batch %s", b.Name))
		}
		if b.Output == "" {
			continue
		}
		if other, ok := outputs[b.Output]; ok {
			errs = append(errs, errors.Errorf("batch %s: output %s already used by batch %s", b.Name, b.Output, other))
		}
		outputs[b.Output] = b.Name
	}
	return errs
}

func (b *Batch) prepare(dir string) []error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, errors.Errorf(format, args...))
	}

	if b.Input == "" {
		fail("missing input")
	} else {
		b.Input = resolve(dir, b.Input)
		var err error
		if b.Format == "" {
			_, err = reader.DetectFormat(b.Input)
		} else {
			var f reader.Format
			f, err = reader.ParseFormat(b.Format)
			b.Format = string(f)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if b.Output == "" {
		fail("missing output")
	} else {
		b.Output = resolve(dir, b.Output)
	}

	if b.GroundStorey == "" {
		fail("missing ground_storey")
	}
	if b.UndergroundStorey == "" {
		fail("missing underground_storey")
	}
	if !b.StoreyHeight.IsSet() {
		fail("missing storey_height")
	} else if b.StoreyHeight.Key == "" && !(b.StoreyHeight.Value > 0) {
		fail("storey_height must be positive, got %g", b.StoreyHeight.Value)
	}

	if len(b.Offset) > 0 && len(b.BaseOffset) > 0 {
		fail("offset and base_offset are mutually exclusive")
	}
	if len(b.Offset) == 0 {
		b.Offset = b.BaseOffset
	}
	if n := len(b.Offset); n != 0 && n != 2 && n != 3 {
		fail("offset needs 2 or 3 values, got %d", n)
	}

	if b.Zone < 0 || b.Zone > 60 {
		fail("zone %d not in 1..60", b.Zone)
	}
	if b.Zone != 0 && !b.ShouldReproject() {
		fail("zone requires reproject")
	}

	switch b.MeshFormat {
	case "":
		b.MeshFormat = OBJ
	case OBJ, PLY:
	default:
		fail("unknown mesh_format %q", b.MeshFormat)
	}
	if b.Materials && b.MeshFormat != OBJ {
		fail("materials are only supported for obj meshes")
	}

	switch b.OnError {
	case "":
		b.OnError = Abort
	case Abort, Skip:
	default:
		fail("unknown on_error policy %q", b.OnError)
	}

	if b.Database != nil && b.Database.Table == "" {
		b.Database.Table = DefaultTable
	}
	return errs
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
