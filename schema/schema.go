// Package schema defines the declarative table and index configuration
// consumed by the document engine backends.
//
// A Schema lists the tables an engine serves and, per table, the named
// indexes and search indexes its queries may traverse. Engines use the
// definitions to answer WithIndex and WithSearchIndex traversals; the
// row-level-security layer is schema-agnostic.
//
// Schemas can be built in code:
//
//	s := schema.New(
//	    schema.Table{
//	        Name: "messages",
//	        Indexes: []schema.Index{
//	            {Name: "by_author", Fields: []string{"author"}},
//	        },
//	        SearchIndexes: []schema.SearchIndex{
//	            {Name: "search_body", Field: "body"},
//	        },
//	    },
//	)
//
// or loaded from YAML:
//
//	tables:
//	  - name: messages
//	    indexes:
//	      - name: by_author
//	        fields: [author]
//	    searchIndexes:
//	      - name: search_body
//	        field: body
package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Schema is the set of table definitions an engine serves.
type Schema struct {
	Tables []Table `yaml:"tables"`
}

// Table defines one table and its named indexes.
type Table struct {
	Name          string        `yaml:"name"`
	Indexes       []Index       `yaml:"indexes,omitempty"`
	SearchIndexes []SearchIndex `yaml:"searchIndexes,omitempty"`
}

// Index defines a named index over one or more document fields. Traversal
// order is by the fields in sequence, then creation time as a tiebreaker.
type Index struct {
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields"`
}

// SearchIndex defines a named text-search index over a single field.
type SearchIndex struct {
	Name  string `yaml:"name"`
	Field string `yaml:"field"`
}

// New returns a Schema over the given tables.
func New(tables ...Table) *Schema {
	return &Schema{Tables: tables}
}

// Parse decodes a YAML schema and validates it.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("schema: decoding: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load decodes a YAML schema from r and validates it.
func Load(r io.Reader) (*Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("schema: reading: %w", err)
	}
	return Parse(data)
}

// Validate checks that table and index names are nonempty and unique and
// that every index names at least one field.
func (s *Schema) Validate() error {
	tables := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("schema: table with empty name")
		}
		if tables[t.Name] {
			return fmt.Errorf("schema: duplicate table %q", t.Name)
		}
		tables[t.Name] = true
		indexes := make(map[string]bool, len(t.Indexes)+len(t.SearchIndexes))
		for _, idx := range t.Indexes {
			if idx.Name == "" {
				return fmt.Errorf("schema: table %q: index with empty name", t.Name)
			}
			if indexes[idx.Name] {
				return fmt.Errorf("schema: table %q: duplicate index %q", t.Name, idx.Name)
			}
			indexes[idx.Name] = true
			if len(idx.Fields) == 0 {
				return fmt.Errorf("schema: table %q: index %q has no fields", t.Name, idx.Name)
			}
		}
		for _, idx := range t.SearchIndexes {
			if idx.Name == "" {
				return fmt.Errorf("schema: table %q: search index with empty name", t.Name)
			}
			if indexes[idx.Name] {
				return fmt.Errorf("schema: table %q: duplicate index %q", t.Name, idx.Name)
			}
			indexes[idx.Name] = true
			if idx.Field == "" {
				return fmt.Errorf("schema: table %q: search index %q has no field", t.Name, idx.Name)
			}
		}
	}
	return nil
}

// Table returns the definition of the named table, or nil when undeclared.
// Engines treat undeclared tables as index-less rather than as errors.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// Index returns the named index definition on t, or nil.
func (t *Table) Index(name string) *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}

// SearchIndex returns the named search index definition on t, or nil.
func (t *Table) SearchIndex(name string) *SearchIndex {
	for i := range t.SearchIndexes {
		if t.SearchIndexes[i].Name == name {
			return &t.SearchIndexes[i]
		}
	}
	return nil
}
