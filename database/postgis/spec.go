package postgis

import (
	"fmt"
	"strings"

	pq "github.com/lib/pq"
)

// TableSpec is the building table of an export.
type TableSpec struct {
	Schema string
	Name   string
	Srid   int
}

// columns in COPY order
var columns = []string{"batch", "id", "feature_id", "building_height", "underground_height", "properties", "geometry"}

func NewTableSpec(table string, srid int) TableSpec {
	spec := TableSpec{Schema: "public", Name: table, Srid: srid}
	if i := strings.IndexByte(table, '.'); i >= 0 {
		spec.Schema, spec.Name = table[:i], table[i+1:]
	}
	return spec
}

func (spec TableSpec) FullName() string {
	return pq.QuoteIdentifier(spec.Schema) + "." + pq.QuoteIdentifier(spec.Name)
}

func (spec TableSpec) CreateSchemaSQL() string {
	return "CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(spec.Schema)
}

func (spec TableSpec) CreateTableSQL() string {
	return fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            batch TEXT NOT NULL,
            id INTEGER NOT NULL,
            feature_id TEXT,
            building_height DOUBLE PRECISION NOT NULL,
            underground_height DOUBLE PRECISION NOT NULL,
            properties JSONB NOT NULL,
            geometry GEOMETRY(PolyhedralSurfaceZ, %d) NOT NULL,
            PRIMARY KEY (batch, id)
        )`,
		spec.FullName(), spec.Srid,
	)
}

func (spec TableSpec) DeleteBatchSQL() string {
	return "DELETE FROM " + spec.FullName() + " WHERE batch = $1"
}

func (spec TableSpec) CopySQL() string {
	return pq.CopyInSchema(spec.Schema, spec.Name, columns...)
}
