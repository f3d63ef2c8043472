// Package database defines the exporters for extruded buildings.
package database

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/building"
)

type Config struct {
	ConnectionParams string
	// Table is the target table, optionally schema qualified.
	Table string
	// Srid of the solid coordinates, 0 if unknown.
	Srid int
}

// Exporter stores the solids of a batch.
type Exporter interface {
	// Export replaces all rows of batch with features in one transaction.
	Export(ctx context.Context, batch string, features []*building.Feature3D) error
	Close() error
}

var databases map[string]func(Config) (Exporter, error)

func init() {
	databases = make(map[string]func(Config) (Exporter, error))
}

func Register(name string, f func(Config) (Exporter, error)) {
	databases[name] = f
}

// Open returns the exporter registered for the scheme of the connection
// parameters.
func Open(conf Config) (Exporter, error) {
	connType := ConnectionType(conf.ConnectionParams)
	newFunc, ok := databases[connType]
	if !ok {
		return nil, errors.Errorf("unsupported database type: %q", connType)
	}
	return newFunc(conf)
}

func ConnectionType(param string) string {
	parts := strings.SplitN(param, ":", 2)
	return parts[0]
}

// NullDb discards all features.
type NullDb struct {
	Exported int
}

func (n *NullDb) Export(ctx context.Context, batch string, features []*building.Feature3D) error {
	n.Exported += len(features)
	return nil
}

func (n *NullDb) Close() error { return nil }

func NewNullDb(conf Config) (Exporter, error) {
	return &NullDb{}, nil
}

func init() {
	Register("null", NewNullDb)
}
