package csql

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/relabs-tech/docrest/core/logger"
)

// DB encapsulates a standard sql.DB with a schema
type DB struct {
	*sql.DB
	Schema string
}

// ErrNoRows is returned by Scan when QueryRow doesn't return a
// row. In such a case, QueryRow returns a placeholder *Row value that
// defers this error until a Scan.
var ErrNoRows = sql.ErrNoRows

// Open opens a postgres database with a schema. The password is appended to the
// data source name if it is not empty. The schema gets created if it does not exist yet.
func Open(dataSourceName, password, schema string) (*DB, error) {
	logger.Default().Infoln("connecting to postgres database: ", dataSourceName)
	if password != "" {
		dataSourceName += " password=" + password
	}
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if len(schema) == 0 {
		schema = "public"
	} else {
		logger.Default().Infoln("selected database schema:", schema)
		if _, err = db.Exec(`CREATE schema IF NOT EXISTS ` + pq.QuoteIdentifier(schema) + `;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("cannot create schema %s: %w", schema, err)
		}
	}
	return &DB{DB: db, Schema: schema}, nil
}

// OpenWithSchema is like Open but panics on error
func OpenWithSchema(dataSourceName, password, schema string) *DB {
	db, err := Open(dataSourceName, password, schema)
	if err != nil {
		panic(err)
	}
	return db
}

// Table returns the quoted, schema qualified name of a table
func (db *DB) Table(name string) string {
	return pq.QuoteIdentifier(db.Schema) + "." + pq.QuoteIdentifier(name)
}

// ClearSchema clears all the data contained in the database's schema
// Technically this is done by dropping the schema and then recreating it
func (db *DB) ClearSchema() {
	if db.Schema == "public" {
		panic("refuse to drop public schema")
	}
	schema := pq.QuoteIdentifier(db.Schema)
	_, err := db.Exec(`DROP SCHEMA ` + schema + ` CASCADE;
	CREATE schema IF NOT EXISTS ` + schema + `;`)
	if err != nil {
		logger.Default().WithError(err).Errorln("clear schema error:", db.Schema)
	}
}
