package postgis

import (
	"context"
	"database/sql"
)

// tableTx replaces the rows of one batch inside a transaction. Rows are
// sent with COPY.
type tableTx struct {
	Pg         *PostGIS
	Tx         *sql.Tx
	Spec       TableSpec
	Batch      string
	InsertStmt *sql.Stmt
	InsertSql  string
}

func newTableTx(pg *PostGIS, batch string) *tableTx {
	return &tableTx{Pg: pg, Spec: pg.Spec, Batch: batch}
}

func (tt *tableTx) Begin(ctx context.Context) error {
	tx, err := tt.Pg.Db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	tt.Tx = tx

	for _, query := range []string{tt.Spec.CreateSchemaSQL(), tt.Spec.CreateTableSQL()} {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return &SQLError{query, err}
		}
	}
	if _, err := tx.ExecContext(ctx, tt.Spec.DeleteBatchSQL(), tt.Batch); err != nil {
		return &SQLError{tt.Spec.DeleteBatchSQL(), err}
	}

	// COPY FROM STDIN does not permit other statements until it is done
	tt.InsertSql = tt.Spec.CopySQL()
	stmt, err := tx.PrepareContext(ctx, tt.InsertSql)
	if err != nil {
		return &SQLError{tt.InsertSql, err}
	}
	tt.InsertStmt = stmt
	return nil
}

func (tt *tableTx) Insert(ctx context.Context, row []interface{}) error {
	if _, err := tt.InsertStmt.ExecContext(ctx, row...); err != nil {
		return &SQLInsertError{SQLError{tt.InsertSql, err}, row[:len(row)-1]}
	}
	return nil
}

func (tt *tableTx) Commit(ctx context.Context) error {
	// an empty Exec flushes the COPY buffer
	if _, err := tt.InsertStmt.ExecContext(ctx); err != nil {
		return &SQLError{tt.InsertSql, err}
	}
	if err := tt.InsertStmt.Close(); err != nil {
		return err
	}
	if err := tt.Tx.Commit(); err != nil {
		return err
	}
	tt.Tx = nil
	return nil
}

func (tt *tableTx) Rollback() {
	if tt.Tx != nil {
		tt.Tx.Rollback()
		tt.Tx = nil
	}
}
