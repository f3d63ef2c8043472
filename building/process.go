// Package building turns footprint features into extruded LoD1 solids.
package building

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/element"
	"github.com/b2gm/lodmap/geom"
	"github.com/b2gm/lodmap/log"
	"github.com/b2gm/lodmap/mapping"
	"github.com/b2gm/lodmap/reader"
	"github.com/b2gm/lodmap/stats"
)

// Feature3D is an extruded footprint. Solids holds one solid per polygon
// part, Footprints the matching source exterior rings.
type Feature3D struct {
	// Index is the position of the feature in its source.
	Index      int
	ID         string
	Attributes *element.Attributes
	Solids     []*geom.Solid
	Footprints []orb.Ring

	GroundStoreys      float64
	UndergroundStoreys float64
	BuildingHeight     float64
	UndergroundHeight  float64
}

type Options struct {
	// Workers is the number of concurrent extrusions, defaults to the
	// number of CPUs.
	Workers int
	Logger  log.Logger
	Stats   *stats.Statistics
}

type Processor struct {
	batch    *mapping.Batch
	extruder geom.Extruder
	workers  int
	logger   log.Logger
	stats    *stats.Statistics

	read, skipped int
}

func NewProcessor(batch *mapping.Batch, opts Options) *Processor {
	p := &Processor{
		batch: batch,
		extruder: geom.Extruder{
			Reproject: batch.ShouldReproject(),
			Offset:    batch.PlanarOffset(),
			Zone:      batch.Zone,
			South:     batch.South,
		},
		workers: opts.Workers,
		logger:  opts.Logger,
		stats:   opts.Stats,
	}
	if p.workers <= 0 {
		p.workers = runtime.NumCPU()
	}
	if p.logger == nil {
		p.logger = log.Discard
	}
	return p
}

// Process extrudes all features of src. Skipped features are logged and
// left out; the result keeps the source order.
func Process(ctx context.Context, batch *mapping.Batch, src reader.Source, opts Options) ([]*Feature3D, error) {
	return NewProcessor(batch, opts).Process(ctx, src)
}

func (p *Processor) Process(ctx context.Context, src reader.Source) ([]*Feature3D, error) {
	features, err := reader.ReadAll(ctx, src)
	if err != nil {
		return nil, errors.Wrapf(err, "batch %s: reading %s", p.batch.Name, p.batch.Input)
	}
	p.stats.AddFeatures(p.batch.Name, len(features))
	p.read, p.skipped = len(features), 0

	results := p.run(ctx, features)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*Feature3D, 0, len(results))
	for i, r := range results {
		idx := features[i].Index
		for _, w := range r.warnings {
			p.logger.Printf("[warn] batch %s: feature %d: %s", p.batch.Name, idx, w)
		}
		if r.err == nil {
			out = append(out, r.feature)
			continue
		}
		if alwaysSkipped(r.err) || p.batch.OnError == mapping.Skip {
			p.logger.Printf("[warn] batch %s: feature %d: skipped: %v", p.batch.Name, idx, r.err)
			p.stats.AddSkipped(p.batch.Name, skipReason(r.err))
			p.skipped++
			continue
		}
		return nil, &BatchError{Batch: p.batch.Name, Feature: idx, Err: r.err}
	}
	return out, nil
}

// Counts returns the number of features read and skipped by the last
// Process.
func (p *Processor) Counts() (read, skipped int) {
	return p.read, p.skipped
}

type result struct {
	feature  *Feature3D
	warnings []string
	err      error
}

// extrudeWorkers processes features concurrently. Each result is stored at
// the position of its feature.
type extrudeWorkers struct {
	p        *Processor
	ctx      context.Context
	features []element.Feature
	results  []result
	jobs     chan int
	wg       *sync.WaitGroup
}

func (p *Processor) run(ctx context.Context, features []element.Feature) []result {
	w := &extrudeWorkers{
		p:        p,
		ctx:      ctx,
		features: features,
		results:  make([]result, len(features)),
		jobs:     make(chan int),
		wg:       &sync.WaitGroup{},
	}
	w.Start(p.workers)
feed:
	for i := range features {
		select {
		case w.jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(w.jobs)
	w.Wait()
	return w.results
}

func (w *extrudeWorkers) Start(n int) {
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.loop()
	}
}

func (w *extrudeWorkers) Wait() {
	w.wg.Wait()
}

func (w *extrudeWorkers) loop() {
	defer w.wg.Done()
	for i := range w.jobs {
		if w.ctx.Err() != nil {
			continue
		}
		r := &w.results[i]
		r.feature, r.err = w.p.extrude(w.features[i], &r.warnings)
		w.p.stats.AddProcessed(1)
	}
}

// extrude builds the solids of a single feature. Degenerate parts of
// multipolygons are dropped with a warning.
func (p *Processor) extrude(f element.Feature, warnings *[]string) (*Feature3D, error) {
	var polygons []orb.Polygon
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		polygons = []orb.Polygon{g}
	case orb.MultiPolygon:
		polygons = g
	case orb.Ring:
		polygons = []orb.Polygon{{g}}
	case nil:
		return nil, &UnsupportedGeometryError{Type: "empty"}
	default:
		return nil, &UnsupportedGeometryError{Type: g.GeoJSONType()}
	}

	h, err := DeriveHeights(f.Attributes, p.batch)
	if err != nil {
		return nil, err
	}
	if !(h.Building > 0) {
		return nil, geom.ErrNonPositiveHeight
	}

	scale := p.extruder.VerticalScale()
	dz := (p.batch.BaseElevation() - h.UndergroundHeight) * scale

	feature := &Feature3D{
		Index:              f.Index,
		ID:                 f.ID,
		Attributes:         f.Attributes,
		GroundStoreys:      h.Ground,
		UndergroundStoreys: h.Underground,
		BuildingHeight:     h.Building,
		UndergroundHeight:  h.UndergroundHeight,
	}
	if feature.Attributes == nil {
		feature.Attributes = element.NewAttributes()
	}
	for i, poly := range polygons {
		ring := geom.Exterior(poly)
		solid, err := p.extruder.Extrude(ring, h.Building)
		if err == geom.ErrDegenerateRing && len(polygons) > 1 {
			*warnings = append(*warnings, fmt.Sprintf("part %d dropped: %v", i, err))
			continue
		}
		if err != nil {
			return nil, err
		}
		feature.Solids = append(feature.Solids, solid.Translate(0, 0, dz))
		feature.Footprints = append(feature.Footprints, ring)
	}
	if len(feature.Solids) == 0 {
		return nil, geom.ErrDegenerateRing
	}
	return feature, nil
}

// SolidCount returns the number of solids of all features.
func SolidCount(features []*Feature3D) int {
	n := 0
	for _, f := range features {
		n += len(f.Solids)
	}
	return n
}
