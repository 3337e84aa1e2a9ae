package store

import (
	"context"
	"database/sql"

	authflow "github.com/goliatone/go-authflow"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenSQLite opens a Bun database over the SQLite shim driver. Use ":memory:"
// for an ephemeral database.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// CreateSchema creates the record and reservation tables if missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*authflow.AccountRecord)(nil),
		(*authflow.UsernameReservation)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
