// Package memdb is an in-memory document engine implementing the rowguard
// access surface. It backs tests and small tools; durability is out of its
// scope.
//
// Documents are stored per table in creation order. Named indexes and
// search indexes come from a schema.Schema supplied at open time. Stored
// and returned documents are isolated from caller mutations by an
// encode/decode clone, which also normalizes field value types the way a
// wire round trip would.
package memdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rowguard/rowguard"
	"github.com/rowguard/rowguard/schema"
)

// ErrNotFound is returned by mutations addressing a nonexistent document.
var ErrNotFound = errors.New("memdb: document not found")

// DB is an in-memory document engine. A DB is safe for concurrent use.
type DB struct {
	schema *schema.Schema

	mu     sync.RWMutex
	tables map[string]*mtable
	seq    int64
}

type mtable struct {
	docs  map[string]rowguard.Document
	seqs  map[string]int64
	order []string // keys in creation order
}

// row pairs a document with its engine-internal insert sequence, the
// tiebreaker for ordering and the anchor for pagination cursors.
type row struct {
	doc rowguard.Document
	seq int64
}

var _ rowguard.Writer = (*DB)(nil)

// Open returns an empty DB serving the given schema. A nil schema serves
// every table without named indexes.
func Open(s *schema.Schema) *DB {
	if s == nil {
		s = schema.New()
	}
	return &DB{schema: s, tables: make(map[string]*mtable)}
}

// Get fetches a document by reference. Returns nil, nil when absent.
func (db *DB) Get(_ context.Context, id rowguard.ID) (rowguard.Document, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t := db.tables[id.Table]
	if t == nil {
		return nil, nil
	}
	doc, ok := t.docs[id.Key]
	if !ok {
		return nil, nil
	}
	return clone(doc)
}

// Insert stores a new document with a generated key and stamped system
// fields, and returns its reference.
func (db *DB) Insert(_ context.Context, name string, value rowguard.Document) (rowguard.ID, error) {
	doc, err := clone(value)
	if err != nil {
		return rowguard.ID{}, err
	}
	if doc == nil {
		doc = rowguard.Document{}
	}
	for k := range doc {
		if systemField(k) {
			return rowguard.ID{}, fmt.Errorf("memdb: cannot insert system field %q", k)
		}
	}
	id := rowguard.NewID(name, uuid.NewString())
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq++
	doc[rowguard.FieldID] = id.String()
	doc[rowguard.FieldCreationTime] = time.Now().UnixMilli()
	t := db.tables[name]
	if t == nil {
		t = &mtable{docs: make(map[string]rowguard.Document), seqs: make(map[string]int64)}
		db.tables[name] = t
	}
	t.docs[id.Key] = doc
	t.seqs[id.Key] = db.seq
	t.order = append(t.order, id.Key)
	return id, nil
}

// Patch merges the given top-level fields into an existing document.
// System fields cannot be patched.
func (db *DB) Patch(_ context.Context, id rowguard.ID, value rowguard.Document) error {
	patch, err := clone(value)
	if err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	doc, err := db.lookup(id)
	if err != nil {
		return err
	}
	for k := range patch {
		if systemField(k) {
			return fmt.Errorf("memdb: cannot patch system field %q", k)
		}
	}
	for k, v := range patch {
		doc[k] = v
	}
	return nil
}

// Replace overwrites an existing document's user fields, preserving its
// system fields.
func (db *DB) Replace(_ context.Context, id rowguard.ID, value rowguard.Document) error {
	next, err := clone(value)
	if err != nil {
		return err
	}
	if next == nil {
		next = rowguard.Document{}
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	doc, err := db.lookup(id)
	if err != nil {
		return err
	}
	for k := range next {
		if systemField(k) {
			return fmt.Errorf("memdb: cannot replace system field %q", k)
		}
	}
	next[rowguard.FieldID] = doc[rowguard.FieldID]
	next[rowguard.FieldCreationTime] = doc[rowguard.FieldCreationTime]
	db.tables[id.Table].docs[id.Key] = next
	return nil
}

// Delete removes an existing document.
func (db *DB) Delete(_ context.Context, id rowguard.ID) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.lookup(id); err != nil {
		return err
	}
	t := db.tables[id.Table]
	delete(t.docs, id.Key)
	delete(t.seqs, id.Key)
	for i, key := range t.order {
		if key == id.Key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// Query returns a query initializer bound to the given table.
func (db *DB) Query(name string) rowguard.QueryInitializer {
	return &Query{db: db, table: name}
}

// lookup must be called with db.mu held.
func (db *DB) lookup(id rowguard.ID) (rowguard.Document, error) {
	t := db.tables[id.Table]
	if t == nil {
		return nil, ErrNotFound
	}
	doc, ok := t.docs[id.Key]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// snapshot returns the table's rows in creation order, uncloned.
// Must be called with db.mu held for reading.
func (db *DB) snapshot(name string) []row {
	t := db.tables[name]
	if t == nil {
		return nil
	}
	rows := make([]row, 0, len(t.order))
	for _, key := range t.order {
		rows = append(rows, row{doc: t.docs[key], seq: t.seqs[key]})
	}
	return rows
}

func systemField(name string) bool {
	return name == rowguard.FieldID || name == rowguard.FieldCreationTime
}

// clone deep-copies a document through a msgpack round trip.
func clone(doc rowguard.Document) (rowguard.Document, error) {
	if doc == nil {
		return nil, nil
	}
	data, err := msgpack.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("memdb: encoding document: %w", err)
	}
	var out rowguard.Document
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("memdb: decoding document: %w", err)
	}
	return out, nil
}
