// Package reader reads building footprints from vector files.
package reader

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/element"
)

type Format string

const (
	GeoJSON    Format = "geojson"
	Shapefile  Format = "shapefile"
	FlatGeobuf Format = "flatgeobuf"
	OSM        Format = "osm"
)

var formats = []Format{GeoJSON, Shapefile, FlatGeobuf, OSM}

// ParseFormat accepts the format names and a few common aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "geojson", "json":
		return GeoJSON, nil
	case "shapefile", "shp":
		return Shapefile, nil
	case "flatgeobuf", "fgb":
		return FlatGeobuf, nil
	case "osm", "pbf", "osm.pbf":
		return OSM, nil
	}
	return "", errors.Errorf("unknown input format %q (known: %v)", name, formats)
}

// DetectFormat returns the format for the file extension of path.
func DetectFormat(path string) (Format, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".osm.pbf") {
		return OSM, nil
	}
	ext := strings.TrimPrefix(filepath.Ext(lower), ".")
	if ext == "" {
		return "", errors.Errorf("cannot detect format of %s without file extension", path)
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return "", errors.Errorf("cannot detect format of %s", path)
	}
	return f, nil
}

// Source is an opened footprint file.
type Source interface {
	// Features calls fn for each feature in source order. It stops at the
	// first error returned by fn and when ctx is cancelled.
	Features(ctx context.Context, fn func(element.Feature) error) error
	Close() error
}

// Open opens path with the given format. An empty format is detected from
// the file extension.
func Open(path string, format Format) (Source, error) {
	if format == "" {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}
	switch format {
	case GeoJSON:
		return openGeoJSON(path)
	case Shapefile:
		return openShapefile(path)
	case FlatGeobuf:
		return openFlatGeobuf(path)
	case OSM:
		return openOSM(path)
	}
	return nil, errors.Errorf("unknown input format %q", format)
}

// ReadAll collects all features of src.
func ReadAll(ctx context.Context, src Source) ([]element.Feature, error) {
	var features []element.Feature
	err := src.Features(ctx, func(f element.Feature) error {
		features = append(features, f)
		return nil
	})
	return features, err
}
