package reader

import (
	"context"

	"github.com/b2gm/lodmap/element"
	"github.com/b2gm/lodmap/geom/fgb"
)

type flatgeobufSource struct {
	path string
	r    *fgb.Reader
}

func openFlatGeobuf(path string) (*flatgeobufSource, error) {
	r, err := fgb.Open(path)
	if err != nil {
		return nil, err
	}
	return &flatgeobufSource{path: path, r: r}, nil
}

// Features reads all features in the order of the spatial index.
// Attributes follow the header column order.
func (s *flatgeobufSource) Features(ctx context.Context, fn func(element.Feature) error) error {
	features, err := s.r.Features()
	if err != nil {
		return err
	}
	for i, f := range features {
		if err := ctx.Err(); err != nil {
			return err
		}
		attrs := f.Attributes
		if attrs == nil {
			attrs = element.NewAttributes()
		}
		if err := fn(element.Feature{Index: i, Geometry: f.Geometry, Attributes: attrs}); err != nil {
			return err
		}
	}
	return nil
}

func (s *flatgeobufSource) Close() error {
	return s.r.Close()
}
