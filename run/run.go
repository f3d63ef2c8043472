// Package run executes all batches of a mapping file.
package run

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/building"
	"github.com/b2gm/lodmap/database"
	_ "github.com/b2gm/lodmap/database/postgis"
	"github.com/b2gm/lodmap/log"
	"github.com/b2gm/lodmap/mapping"
	"github.com/b2gm/lodmap/reader"
	"github.com/b2gm/lodmap/stats"
	"github.com/b2gm/lodmap/writer"
)

type Options struct {
	MappingFile string
	Workers     int
	Overwrite   bool
	// KeepGoing continues with the next batch after a failed batch.
	KeepGoing bool
	// Connection is used for database outputs without connection.
	Connection string
	// MetricsFile receives the run statistics in the Prometheus text format.
	MetricsFile string

	Logger log.Logger
	Stats  *stats.Statistics
	// ProgressInterval enables periodic progress lines.
	ProgressInterval time.Duration
}

type BatchReport struct {
	Name     string
	Output   string
	Read     int
	Features int
	Skipped  int
	Solids   int
	Files    int
	Duration time.Duration
	Err      error
}

type Report struct {
	Batches  []BatchReport
	Duration time.Duration
}

// Failed returns the names of all failed batches.
func (r *Report) Failed() []string {
	var names []string
	for _, b := range r.Batches {
		if b.Err != nil {
			names = append(names, b.Name)
		}
	}
	return names
}

// Load reads the mapping and checks everything that can be checked
// before a run.
func Load(opts Options) (*mapping.Mapping, error) {
	m, err := mapping.NewMapping(opts.MappingFile)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, b := range m.Batches {
		if b.Database != nil && b.Database.Connection == "" && opts.Connection == "" {
			errs = append(errs, errors.Errorf("batch %s: database output without connection", b.Name))
		}
	}
	if len(errs) > 0 {
		return nil, &mapping.ConfigError{File: opts.MappingFile, Errs: errs}
	}
	return m, nil
}

// Run processes all batches in mapping order. The report lists every
// batch that was started, also on errors.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Logger == nil {
		opts.Logger = log.Discard
	}
	if opts.Stats == nil {
		opts.Stats = stats.New()
	}
	l := opts.Logger
	start := time.Now()

	m, err := Load(opts)
	if err != nil {
		return nil, err
	}

	if opts.ProgressInterval > 0 {
		stop := opts.Stats.StartReporter(l, opts.ProgressInterval)
		defer stop()
	}

	r := &runner{
		opts: opts,
		rand: rand.New(rand.NewSource(m.Seed)),
	}
	report := &Report{}
	var firstErr error
	for _, b := range m.Batches {
		br := r.batch(ctx, b)
		report.Batches = append(report.Batches, br)
		if br.Err == nil {
			l.Printf("[info] batch %s: %d of %d features, %d solids written to %s",
				b.Name, br.Features, br.Read, br.Solids, b.Output)
			continue
		}
		l.Printf("[error] batch %s failed: %v", b.Name, br.Err)
		if firstErr == nil {
			firstErr = br.Err
		}
		if !opts.KeepGoing || ctx.Err() != nil {
			break
		}
	}

	report.Duration = time.Since(start)
	l.Printf("[info] finished %d batches in %s", len(report.Batches), report.Duration)

	if opts.MetricsFile != "" {
		if err := opts.Stats.WriteTextfile(opts.MetricsFile); err != nil {
			l.Printf("[error] %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed := report.Failed(); len(failed) > 1 {
		return report, errors.Wrapf(firstErr, "%d batches failed %v, first error", len(failed), failed)
	}
	return report, firstErr
}

type runner struct {
	opts Options
	rand *rand.Rand
}

func (r *runner) batch(ctx context.Context, b *mapping.Batch) (br BatchReport) {
	br = BatchReport{Name: b.Name, Output: b.Output}
	start := time.Now()
	defer func() {
		br.Duration = time.Since(start)
		r.opts.Stats.BatchDone(b.Name, br.Duration, br.Err)
	}()
	l := r.opts.Logger

	step := log.Step(l, "Reading "+b.Input)
	src, err := reader.Open(b.Input, reader.Format(b.Format))
	if err != nil {
		br.Err = errors.Wrapf(err, "batch %s", b.Name)
		return br
	}
	defer src.Close()

	p := building.NewProcessor(b, building.Options{
		Workers: r.opts.Workers,
		Logger:  l,
		Stats:   r.opts.Stats,
	})
	features, err := p.Process(ctx, src)
	br.Read, br.Skipped = p.Counts()
	step()
	if err != nil {
		br.Err = err
		return br
	}
	br.Features = len(features)

	step = log.Step(l, "Writing "+b.Output)
	summary, err := writer.Write(ctx, features, b.Output, writer.Options{
		Format:        b.MeshFormat,
		Materials:     b.Materials,
		Rand:          r.rand,
		CityGML:       b.CityGML,
		SRSName:       srsName(b),
		Footprints:    b.Footprints,
		FootprintEPSG: footprintEPSG(b),
		Overwrite:     r.opts.Overwrite,
		Logger:        l,
	})
	step()
	if err != nil {
		br.Err = errors.Wrapf(err, "batch %s", b.Name)
		return br
	}
	br.Solids, br.Files = summary.Solids, len(summary.Files)
	r.opts.Stats.AddSolids(b.Name, summary.Solids)

	if b.Database != nil {
		defer log.Step(l, "Exporting "+b.Name+" to "+b.Database.Table)()
		if err := r.export(ctx, b, features); err != nil {
			br.Err = errors.Wrapf(err, "batch %s", b.Name)
		}
	}
	return br
}

func (r *runner) export(ctx context.Context, b *mapping.Batch, features []*building.Feature3D) error {
	conn := b.Database.Connection
	if conn == "" {
		conn = r.opts.Connection
	}
	exp, err := database.Open(database.Config{
		ConnectionParams: conn,
		Table:            b.Database.Table,
		Srid:             UTMEPSG(b),
	})
	if err != nil {
		return err
	}
	defer exp.Close()
	return exp.Export(ctx, b.Name, features)
}

// UTMEPSG returns the EPSG code of the output coordinates of b, or 0 if
// the zone varies per footprint or the input is not reprojected.
func UTMEPSG(b *mapping.Batch) int {
	if !b.ShouldReproject() || b.Zone == 0 || len(b.Offset) > 0 {
		return 0
	}
	if b.South {
		return 32700 + b.Zone
	}
	return 32600 + b.Zone
}

func srsName(b *mapping.Batch) string {
	if code := UTMEPSG(b); code > 0 {
		return "EPSG:" + strconv.Itoa(code)
	}
	return ""
}

// footprintEPSG is WGS84 for reprojected batches, whose input is
// geographic.
func footprintEPSG(b *mapping.Batch) int {
	if b.ShouldReproject() {
		return 4326
	}
	return 0
}
