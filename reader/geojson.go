package reader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/element"
)

type geojsonSource struct {
	path string
	data []byte
}

func openGeoJSON(path string) (*geojsonSource, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return &geojsonSource{path: path, data: data}, nil
}

type rawFeature struct {
	Type       string          `json:"type"`
	ID         interface{}     `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

type rawDocument struct {
	rawFeature
	Features []rawFeature `json:"features"`
}

// Features accepts a FeatureCollection or a single Feature.
func (s *geojsonSource) Features(ctx context.Context, fn func(element.Feature) error) error {
	var doc rawDocument
	if err := json.Unmarshal(s.data, &doc); err != nil {
		return errors.Wrapf(err, "parsing %s", s.path)
	}
	features := doc.Features
	switch doc.Type {
	case "FeatureCollection":
	case "Feature":
		features = []rawFeature{doc.rawFeature}
	default:
		return errors.Errorf("%s: expected FeatureCollection or Feature, got %q", s.path, doc.Type)
	}

	for i, raw := range features {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := decodeFeature(i, raw)
		if err != nil {
			return errors.Wrapf(err, "%s: feature %d", s.path, i)
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *geojsonSource) Close() error {
	s.data = nil
	return nil
}

func decodeFeature(i int, raw rawFeature) (element.Feature, error) {
	f := element.Feature{Index: i}
	if raw.ID != nil {
		f.ID = fmt.Sprint(raw.ID)
	}
	if !isNull(raw.Geometry) {
		g, err := geojson.UnmarshalGeometry(raw.Geometry)
		if err != nil {
			return f, errors.Wrap(err, "geometry")
		}
		f.Geometry = g.Geometry()
	}
	attrs, err := decodeProperties(raw.Properties)
	if err != nil {
		return f, errors.Wrap(err, "properties")
	}
	f.Attributes = attrs
	return f, nil
}

func isNull(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

// decodeProperties keeps the key order of the JSON object.
func decodeProperties(raw json.RawMessage) (*element.Attributes, error) {
	attrs := element.NewAttributes()
	if isNull(raw) {
		return attrs, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("properties is not an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Errorf("unexpected token %v", tok)
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, errors.Wrapf(err, "property %s", key)
		}
		attrs.Set(key, element.ValueOf(v))
	}
	return attrs, nil
}
