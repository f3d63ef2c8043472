// Package writer stores extruded buildings as mesh files plus a table of
// their attributes.
package writer

import (
	"bufio"
	"context"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/building"
	"github.com/b2gm/lodmap/log"
	"github.com/b2gm/lodmap/mapping"
)

const (
	PropertiesFile = "building_properties.csv"
	MaterialsFile  = "buildings.mtl"
	CityGMLFile    = "building_lod1.gml"
	FootprintsFile = "building_footprints.fgb"
)

// ErrArtifactsExist is returned when the output directory contains files
// of a previous run and overwriting is disabled.
var ErrArtifactsExist = errors.New("output contains artifacts of a previous run")

type Options struct {
	Format    mapping.MeshFormat
	Materials bool
	// Rand draws the material colours. Required with Materials.
	Rand *rand.Rand

	CityGML bool
	// SRSName is the CRS of the CityGML coordinates, may be empty.
	SRSName    string
	Footprints bool
	// FootprintEPSG is the CRS of the source footprints, 0 if unknown.
	FootprintEPSG int

	Overwrite bool
	Logger    log.Logger
}

// Summary lists the results of a Write.
type Summary struct {
	Dir      string
	Features int
	Solids   int
	// Files are the written file names, relative to Dir.
	Files []string
	// Removed are artifacts of a previous run that are not part of this
	// one.
	Removed []string
}

// MeshName returns the file name of the k-th solid (1-based).
func MeshName(k int, format mapping.MeshFormat) string {
	return fmt.Sprintf("building_%d.%s", k, format)
}

// MeshIndices returns the 1-based index of the first solid of each
// feature.
func MeshIndices(features []*building.Feature3D) []int {
	idx := make([]int, len(features))
	next := 1
	for i, f := range features {
		idx[i] = next
		next += len(f.Solids)
	}
	return idx
}

// Write stores features in dir. All files are written to temporary names
// first. They replace the previous artifacts only if all of them were
// written, otherwise dir is left unchanged.
func Write(ctx context.Context, features []*building.Feature3D, dir string, opts Options) (*Summary, error) {
	if opts.Format == "" {
		opts.Format = mapping.OBJ
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard
	}
	if opts.Materials && opts.Rand == nil {
		return nil, errors.New("materials need a colour source")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating output %s", dir)
	}
	existing, err := artifacts(dir)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 && !opts.Overwrite {
		return nil, errors.Wrapf(ErrArtifactsExist, "%s (%s, ...)", dir, existing[0])
	}

	w := &batchWriter{dir: dir}
	s := &Summary{Dir: dir, Features: len(features)}
	if err := w.writeAll(ctx, features, opts, s); err != nil {
		w.removeTemps()
		return nil, err
	}
	if err := w.commit(); err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(w.files))
	for _, f := range w.files {
		keep[f.name] = true
		s.Files = append(s.Files, f.name)
	}
	for _, name := range existing {
		if keep[name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return nil, errors.Wrapf(err, "removing stale %s", name)
		}
		opts.Logger.Printf("[debug] removed stale %s", filepath.Join(dir, name))
		s.Removed = append(s.Removed, name)
	}
	return s, nil
}

func (w *batchWriter) writeAll(ctx context.Context, features []*building.Feature3D, opts Options, s *Summary) error {
	var colours []colour
	if opts.Materials {
		colours = materialColours(opts.Rand, len(features))
		if err := w.create(MaterialsFile, func(bw *bufio.Writer) error {
			return writeMaterials(bw, colours)
		}); err != nil {
			return err
		}
	}

	encode := writeOBJ
	if opts.Format == mapping.PLY {
		encode = writePLY
	}
	indices := MeshIndices(features)
	for i, f := range features {
		if err := ctx.Err(); err != nil {
			return err
		}
		for j, solid := range f.Solids {
			name := MeshName(indices[i]+j, opts.Format)
			m := mesh{name: strings.TrimSuffix(name, filepath.Ext(name)), solid: solid}
			if opts.Materials {
				m.mtllib = MaterialsFile
				m.material = materialName(i)
			}
			if err := w.create(name, func(bw *bufio.Writer) error {
				return encode(bw, m)
			}); err != nil {
				return err
			}
			s.Solids++
		}
	}

	if err := w.create(PropertiesFile, func(bw *bufio.Writer) error {
		return writeProperties(bw, features)
	}); err != nil {
		return err
	}
	if opts.CityGML {
		if err := w.create(CityGMLFile, func(bw *bufio.Writer) error {
			return writeCityGML(bw, features, opts.SRSName)
		}); err != nil {
			return err
		}
	}
	if opts.Footprints && s.Solids > 0 {
		if err := w.create(FootprintsFile, func(bw *bufio.Writer) error {
			return writeFootprints(bw, features, opts.FootprintEPSG)
		}); err != nil {
			return err
		}
	}
	return nil
}

type pendingFile struct {
	name string
	tmp  string
}

type batchWriter struct {
	dir   string
	files []pendingFile
}

// create writes a file to a hidden temporary name.
func (w *batchWriter) create(name string, fn func(*bufio.Writer) error) error {
	tmp := filepath.Join(w.dir, "."+name+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "creating %s", name)
	}
	w.files = append(w.files, pendingFile{name: name, tmp: tmp})

	bw := bufio.NewWriter(f)
	err = fn(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "writing %s", name)
}

// commit renames all temporary files. Files of a previous run with the
// same name are moved aside first and restored if any rename fails.
func (w *batchWriter) commit() error {
	var backups []string
	restore := func(done int) {
		for _, f := range w.files[:done] {
			os.Remove(filepath.Join(w.dir, f.name))
		}
		for _, name := range backups {
			os.Rename(backupName(w.dir, name), filepath.Join(w.dir, name))
		}
		w.removeTemps()
	}

	for i, f := range w.files {
		dst := filepath.Join(w.dir, f.name)
		if fi, err := os.Lstat(dst); err == nil {
			if !fi.Mode().IsRegular() {
				restore(i)
				return errors.Errorf("%s exists and is not a regular file", dst)
			}
			if err := os.Rename(dst, backupName(w.dir, f.name)); err != nil {
				restore(i)
				return errors.Wrapf(err, "moving previous %s", f.name)
			}
			backups = append(backups, f.name)
		}
		if err := os.Rename(f.tmp, dst); err != nil {
			restore(i)
			return errors.Wrapf(err, "renaming %s", f.name)
		}
	}
	for _, name := range backups {
		os.Remove(backupName(w.dir, name))
	}
	return nil
}

func backupName(dir, name string) string {
	return filepath.Join(dir, "."+name+".prev")
}

func (w *batchWriter) removeTemps() {
	for _, f := range w.files {
		os.Remove(f.tmp)
	}
}

var meshFile = regexp.MustCompile(`^building_[0-9]+\.(obj|ply)$`)

// isArtifact reports whether name is a file this package writes.
func isArtifact(name string) bool {
	switch name {
	case PropertiesFile, MaterialsFile, CityGMLFile, FootprintsFile:
		return true
	}
	return meshFile.MatchString(name)
}

// artifacts returns the names of files in dir written by a previous run.
// Other files are never touched.
func artifacts(dir string) ([]string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading output %s", dir)
	}
	var names []string
	for _, e := range entries {
		if !e.Mode().IsRegular() {
			continue
		}
		if isArtifact(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
