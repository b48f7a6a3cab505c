// Package sqldoc is a document engine over database/sql implementing the
// rowguard access surface.
//
// All documents live in one SQL table keyed by (document table, key), with
// document bodies stored as JSON and an autoincrementing sequence providing
// creation order. SQLite, MySQL and Postgres are supported; index scans
// order by JSON-extracted fields in SQL, while range bounds, filters and
// search matching are evaluated in Go while streaming rows, so the three
// dialects behave identically.
//
// Open the engine over an existing *sql.DB:
//
//	db, err := sqldoc.Open(sqldoc.SQLite, conn, s)
//	if err != nil { ... }
//	if err := db.Migrate(ctx); err != nil { ... }
package sqldoc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rowguard/rowguard"
	"github.com/rowguard/rowguard/schema"
)

// ErrNotFound is returned by mutations addressing a nonexistent document.
var ErrNotFound = errors.New("sqldoc: document not found")

// DB is a SQL-backed document engine.
type DB struct {
	conn    *sql.DB
	dialect string
	schema  *schema.Schema
	logger  *slog.Logger
}

var _ rowguard.Writer = (*DB)(nil)

// Option configures a DB.
type Option func(*DB)

// WithLogger makes the engine log each statement and its duration at debug
// level.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// Open returns an engine over conn speaking the given dialect and serving
// the given schema. A nil schema serves every table without named indexes.
func Open(dialect string, conn *sql.DB, s *schema.Schema, opts ...Option) (*DB, error) {
	if !validDialect(dialect) {
		return nil, fmt.Errorf("sqldoc: unsupported dialect %q", dialect)
	}
	if conn == nil {
		return nil, fmt.Errorf("sqldoc: nil connection")
	}
	if s == nil {
		s = schema.New()
	}
	db := &DB{conn: conn, dialect: dialect, schema: s}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Migrate creates the backing table if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.exec(ctx, db.conn, ddl(db.dialect))
	return err
}

// Get fetches a document by reference. Returns nil, nil when absent.
func (db *DB) Get(ctx context.Context, id rowguard.ID) (rowguard.Document, error) {
	q := rebind(db.dialect, `SELECT v FROM `+storeTable+` WHERE tbl = ? AND k = ?`)
	defer db.logQuery(q, time.Now())
	var body []byte
	err := db.conn.QueryRowContext(ctx, q, id.Table, id.Key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqldoc: querying %s: %w", id, err)
	}
	return decodeDoc(body)
}

// Insert stores a new document with a generated key and stamped system
// fields, and returns its reference.
func (db *DB) Insert(ctx context.Context, name string, value rowguard.Document) (rowguard.ID, error) {
	doc := rowguard.Document{}
	for k, v := range value {
		if k == rowguard.FieldID || k == rowguard.FieldCreationTime {
			return rowguard.ID{}, fmt.Errorf("sqldoc: cannot insert system field %q", k)
		}
		doc[k] = v
	}
	id := rowguard.NewID(name, uuid.NewString())
	doc[rowguard.FieldID] = id.String()
	doc[rowguard.FieldCreationTime] = time.Now().UnixMilli()
	body, err := json.Marshal(doc)
	if err != nil {
		return rowguard.ID{}, fmt.Errorf("sqldoc: encoding document: %w", err)
	}
	q := rebind(db.dialect, `INSERT INTO `+storeTable+` (tbl, k, v, created) VALUES (?, ?, ?, ?)`)
	if _, err := db.exec(ctx, db.conn, q, name, id.Key, body, doc[rowguard.FieldCreationTime]); err != nil {
		return rowguard.ID{}, fmt.Errorf("sqldoc: inserting into %s: %w", name, err)
	}
	return id, nil
}

// Patch merges the given top-level fields into an existing document.
// System fields cannot be patched.
func (db *DB) Patch(ctx context.Context, id rowguard.ID, value rowguard.Document) error {
	for k := range value {
		if k == rowguard.FieldID || k == rowguard.FieldCreationTime {
			return fmt.Errorf("sqldoc: cannot patch system field %q", k)
		}
	}
	return db.update(ctx, id, func(doc rowguard.Document) {
		for k, v := range value {
			doc[k] = v
		}
	})
}

// Replace overwrites an existing document's user fields, preserving its
// system fields.
func (db *DB) Replace(ctx context.Context, id rowguard.ID, value rowguard.Document) error {
	for k := range value {
		if k == rowguard.FieldID || k == rowguard.FieldCreationTime {
			return fmt.Errorf("sqldoc: cannot replace system field %q", k)
		}
	}
	return db.update(ctx, id, func(doc rowguard.Document) {
		for k := range doc {
			if k != rowguard.FieldID && k != rowguard.FieldCreationTime {
				delete(doc, k)
			}
		}
		for k, v := range value {
			doc[k] = v
		}
	})
}

// Delete removes an existing document.
func (db *DB) Delete(ctx context.Context, id rowguard.ID) error {
	q := rebind(db.dialect, `DELETE FROM `+storeTable+` WHERE tbl = ? AND k = ?`)
	res, err := db.exec(ctx, db.conn, q, id.Table, id.Key)
	if err != nil {
		return fmt.Errorf("sqldoc: deleting %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldoc: deleting %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Query returns a query initializer bound to the given table.
func (db *DB) Query(name string) rowguard.QueryInitializer {
	return &Query{db: db, table: name}
}

// update runs a read-modify-write of one document body in a transaction,
// locking the row on dialects that support it.
func (db *DB) update(ctx context.Context, id rowguard.ID, mutate func(rowguard.Document)) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqldoc: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	q := rebind(db.dialect, `SELECT v FROM `+storeTable+` WHERE tbl = ? AND k = ?`+forUpdate(db.dialect))
	defer db.logQuery(q, time.Now())
	var body []byte
	err = tx.QueryRowContext(ctx, q, id.Table, id.Key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sqldoc: querying %s: %w", id, err)
	}
	doc, err := decodeDoc(body)
	if err != nil {
		return err
	}
	mutate(doc)
	next, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sqldoc: encoding document: %w", err)
	}
	uq := rebind(db.dialect, `UPDATE `+storeTable+` SET v = ? WHERE tbl = ? AND k = ?`)
	if _, err := db.exec(ctx, tx, uq, next, id.Table, id.Key); err != nil {
		return fmt.Errorf("sqldoc: updating %s: %w", id, err)
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (db *DB) exec(ctx context.Context, on execer, query string, args ...any) (sql.Result, error) {
	defer db.logQuery(query, time.Now())
	return on.ExecContext(ctx, query, args...)
}

func (db *DB) logQuery(query string, start time.Time) {
	if db.logger == nil {
		return
	}
	db.logger.Debug("sqldoc statement", "query", query, "duration", time.Since(start))
}

func decodeDoc(body []byte) (rowguard.Document, error) {
	var doc rowguard.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("sqldoc: decoding document: %w", err)
	}
	return doc, nil
}
