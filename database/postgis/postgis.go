// Package postgis exports solids as PolyhedralSurfaceZ rows.
package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	pq "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/building"
	"github.com/b2gm/lodmap/database"
	"github.com/b2gm/lodmap/writer"
)

type SQLError struct {
	query         string
	originalError error
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("SQL Error: %s in query %s", e.originalError.Error(), e.query)
}

func (e *SQLError) Cause() error {
	return e.originalError
}

type SQLInsertError struct {
	SQLError
	data interface{}
}

func (e *SQLInsertError) Error() string {
	return fmt.Sprintf("SQL Error: %s in query %s (%+v)", e.originalError.Error(), e.query, e.data)
}

type PostGIS struct {
	Db     *sql.DB
	Params string
	Spec   TableSpec
}

func New(conf database.Config) (database.Exporter, error) {
	connection := conf.ConnectionParams
	if strings.HasPrefix(connection, "postgis://") {
		connection = strings.Replace(connection, "postgis", "postgres", 1)
	}
	params, err := pq.ParseURL(connection)
	if err != nil {
		return nil, errors.Wrap(err, "parsing connection")
	}
	params = disableDefaultSslOnLocalhost(params)

	table := conf.Table
	if table == "" {
		return nil, errors.New("missing table")
	}

	pg := &PostGIS{
		Params: params,
		Spec:   NewTableSpec(table, conf.Srid),
	}
	if err := pg.Open(); err != nil {
		return nil, err
	}
	return pg, nil
}

func (pg *PostGIS) Open() error {
	var err error
	pg.Db, err = sql.Open("postgres", pg.Params)
	if err != nil {
		return err
	}
	// sql.Open does not connect, ping to catch invalid parameters
	if err := pg.Db.Ping(); err != nil {
		pg.Db.Close()
		return errors.Wrap(err, "connecting to postgis")
	}
	return nil
}

// Export replaces the rows of batch. One row is written per solid, with
// the same id as the mesh file of the solid.
func (pg *PostGIS) Export(ctx context.Context, batch string, features []*building.Feature3D) error {
	tt := newTableTx(pg, batch)
	if err := tt.Begin(ctx); err != nil {
		tt.Rollback()
		return errors.Wrapf(err, "exporting batch %s to %s", batch, pg.Spec.FullName())
	}

	indices := writer.MeshIndices(features)
	for i, f := range features {
		props, err := f.Attributes.MarshalJSON()
		if err != nil {
			tt.Rollback()
			return err
		}
		for j, solid := range f.Solids {
			row := []interface{}{
				batch,
				indices[i] + j,
				f.ID,
				f.BuildingHeight,
				f.UndergroundHeight,
				string(props),
				PolyhedralSurfaceZ(solid, pg.Spec.Srid),
			}
			if err := tt.Insert(ctx, row); err != nil {
				tt.Rollback()
				return errors.Wrapf(err, "exporting batch %s", batch)
			}
		}
	}

	if err := tt.Commit(ctx); err != nil {
		tt.Rollback()
		return errors.Wrapf(err, "exporting batch %s", batch)
	}
	return nil
}

func (pg *PostGIS) Close() error {
	return pg.Db.Close()
}

// disableDefaultSslOnLocalhost adds sslmode=disable for local connections
// without explicit sslmode.
func disableDefaultSslOnLocalhost(params string) string {
	parts := strings.Fields(params)
	isLocalHost := false
	for _, p := range parts {
		if strings.HasPrefix(p, "sslmode=") {
			return params
		}
		if p == "host=localhost" || p == "host=127.0.0.1" {
			isLocalHost = true
		}
	}
	if !isLocalHost {
		return params
	}
	if _, ok := os.LookupEnv("PGSSLMODE"); ok {
		return params
	}
	return params + " sslmode=disable"
}

func init() {
	database.Register("postgres", New)
	database.Register("postgis", New)
}
