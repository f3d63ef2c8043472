package reader

import (
	"context"
	"os"
	"sort"
	"strconv"
	"sync"

	osm "github.com/omniscale/go-osm"
	"github.com/omniscale/go-osm/parser/pbf"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/element"
)

type osmSource struct {
	path string
	f    *os.File
}

func openOSM(path string) (*osmSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return &osmSource{path: path, f: f}, nil
}

// Features returns all ways and relations with a building tag. Ways are
// returned first, each group ordered by OSM ID. Closed ways become
// polygons, relations and ways with missing nodes have no geometry.
// Tags are stored as attributes sorted by key.
func (s *osmSource) Features(ctx context.Context, fn func(element.Feature) error) error {
	buildings, err := s.parse(ctx)
	if err != nil {
		return err
	}
	for i, b := range buildings {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.Index = i
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func (s *osmSource) Close() error {
	return s.f.Close()
}

func (s *osmSource) parse(ctx context.Context) ([]element.Feature, error) {
	coords := make(chan []osm.Node)
	ways := make(chan []osm.Way)
	relations := make(chan []osm.Relation)
	stop := make(chan struct{})

	points := map[int64]orb.Point{}
	var buildingWays []osm.Way
	var buildingRels []osm.Relation

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case nds := <-coords:
				for _, nd := range nds {
					points[nd.ID] = orb.Point{nd.Long, nd.Lat}
				}
			case ws := <-ways:
				for _, w := range ws {
					if _, ok := w.Tags["building"]; ok {
						buildingWays = append(buildingWays, w)
					}
				}
			case rels := <-relations:
				for _, r := range rels {
					if isBuildingRelation(r.Tags) {
						buildingRels = append(buildingRels, r)
					}
				}
			case <-stop:
				return
			}
		}
	}()

	p := pbf.New(s.f, pbf.Config{
		Coords:    coords,
		Ways:      ways,
		Relations: relations,
		KeepOpen:  true,
	})
	err := p.Parse(ctx)
	close(stop)
	wg.Wait()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", s.path)
	}

	sort.Slice(buildingWays, func(i, j int) bool { return buildingWays[i].ID < buildingWays[j].ID })
	sort.Slice(buildingRels, func(i, j int) bool { return buildingRels[i].ID < buildingRels[j].ID })

	features := make([]element.Feature, 0, len(buildingWays)+len(buildingRels))
	for _, w := range buildingWays {
		features = append(features, element.Feature{
			ID:         "way/" + strconv.FormatInt(w.ID, 10),
			Geometry:   wayPolygon(&w, points),
			Attributes: tagAttributes(w.Tags),
		})
	}
	for _, r := range buildingRels {
		features = append(features, element.Feature{
			ID:         "relation/" + strconv.FormatInt(r.ID, 10),
			Attributes: tagAttributes(r.Tags),
		})
	}
	return features, nil
}

func isBuildingRelation(tags osm.Tags) bool {
	if tags["type"] == "building" {
		return true
	}
	_, ok := tags["building"]
	return ok && tags["type"] == "multipolygon"
}

// wayPolygon returns nil for open ways and ways with unknown nodes.
func wayPolygon(w *osm.Way, points map[int64]orb.Point) orb.Geometry {
	if !w.IsClosed() {
		return nil
	}
	ring := make(orb.Ring, 0, len(w.Refs))
	for _, ref := range w.Refs {
		pt, ok := points[ref]
		if !ok {
			return nil
		}
		ring = append(ring, pt)
	}
	return orb.Polygon{ring}
}

func tagAttributes(tags osm.Tags) *element.Attributes {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := element.NewAttributes()
	for _, k := range keys {
		attrs.Set(k, element.StringValue(tags[k]))
	}
	return attrs
}
