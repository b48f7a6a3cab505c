package rowguard

import (
	"fmt"
	"strings"
)

// System field names reserved on every stored document.
const (
	// FieldID holds the string form of the document's ID.
	FieldID = "_id"

	// FieldCreationTime holds the document's insert time in Unix milliseconds.
	FieldCreationTime = "_creationTime"
)

// Document is a single structured record belonging to exactly one table.
// Documents are owned by the storage engine; this layer never mutates their
// contents except by delegating to the engine.
type Document map[string]any

// Ref returns the document's ID parsed from its FieldID system field.
// The second return value is false for documents that were never stored
// (e.g. insert candidates).
func (d Document) Ref() (ID, bool) {
	s, ok := d[FieldID].(string)
	if !ok {
		return ID{}, false
	}
	id, err := ParseID(s)
	if err != nil {
		return ID{}, false
	}
	return id, true
}

// Field returns the named field value and whether it is present.
func (d Document) Field(name string) (any, bool) {
	v, ok := d[name]
	return v, ok
}

// ID is a reference to a document: a table name plus a per-table unique key.
// The table name is immutable and always resolvable to that table's rules.
type ID struct {
	Table string
	Key   string
}

// NewID returns an ID for the given table and key.
func NewID(table, key string) ID {
	return ID{Table: table, Key: key}
}

// String returns the canonical "table/key" form of the ID.
func (id ID) String() string {
	return id.Table + "/" + id.Key
}

// IsZero reports whether the ID is empty.
func (id ID) IsZero() bool {
	return id.Table == "" && id.Key == ""
}

// ParseID parses the canonical "table/key" form produced by ID.String.
// The key part may itself contain slashes; only the first separator splits.
func ParseID(s string) (ID, error) {
	table, key, ok := strings.Cut(s, "/")
	if !ok || table == "" || key == "" {
		return ID{}, fmt.Errorf("rowguard: malformed document id %q", s)
	}
	return ID{Table: table, Key: key}, nil
}
