package memdb

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rowguard/rowguard"
	"github.com/rowguard/rowguard/internal/docval"
)

// Query is the builder for traversals over one table. It implements both
// rowguard.QueryInitializer and rowguard.Query; materialization methods
// invoked before choosing a scan strategy imply a full scan.
type Query struct {
	db    *DB
	table string

	scan    scanKind
	index   string
	rng     *rowguard.Range
	search  string
	filters []rowguard.Filter
	order   rowguard.Order
	err     error
}

type scanKind int

const (
	scanFull scanKind = iota
	scanIndex
	scanSearch
)

var (
	_ rowguard.QueryInitializer = (*Query)(nil)
	_ rowguard.Query            = (*Query)(nil)
)

// derive returns a copy of q so that queries built from one initializer do
// not share builder state.
func (q *Query) derive() *Query {
	c := *q
	c.filters = append([]rowguard.Filter(nil), q.filters...)
	return &c
}

// FullScan traverses the whole table in creation order.
func (q *Query) FullScan() rowguard.Query {
	c := q.derive()
	c.scan = scanFull
	return c
}

// WithIndex traverses the named index, optionally narrowed by a range.
func (q *Query) WithIndex(index string, r *rowguard.Range) rowguard.Query {
	c := q.derive()
	c.scan = scanIndex
	c.index = index
	c.rng = r
	return c
}

// WithSearchIndex traverses the named search index, narrowed to documents
// whose indexed field contains the query string (case-insensitive).
func (q *Query) WithSearchIndex(index, search string) rowguard.Query {
	c := q.derive()
	c.scan = scanSearch
	c.index = index
	c.search = search
	return c
}

// Filter narrows the query to documents the filter accepts.
func (q *Query) Filter(f rowguard.Filter) rowguard.Query {
	c := q.derive()
	c.filters = append(c.filters, f)
	return c
}

// Order sets the traversal direction.
func (q *Query) Order(o rowguard.Order) rowguard.Query {
	c := q.derive()
	c.order = o
	return c
}

// Collect runs the query and returns all matching documents.
func (q *Query) Collect(ctx context.Context) ([]rowguard.Document, error) {
	rows, err := q.run(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]rowguard.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.doc
	}
	return docs, nil
}

// Take returns at most n matching documents.
func (q *Query) Take(ctx context.Context, n int) ([]rowguard.Document, error) {
	docs, err := q.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) > n {
		docs = docs[:n]
	}
	return docs, nil
}

// First returns the first matching document, or nil, nil when none match.
func (q *Query) First(ctx context.Context) (rowguard.Document, error) {
	docs, err := q.Take(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// Unique returns the single matching document, nil, nil when none match,
// and a NotUniqueError when more than one matches.
func (q *Query) Unique(ctx context.Context) (rowguard.Document, error) {
	docs, err := q.Take(ctx, 2)
	if err != nil {
		return nil, err
	}
	switch len(docs) {
	case 0:
		return nil, nil
	case 1:
		return docs[0], nil
	default:
		return nil, rowguard.NewNotUniqueError(q.table)
	}
}

// Paginate returns one page of the query. The continuation cursor encodes
// the traversal offset; it stays valid as long as the table's contents do
// not shift under it.
func (q *Query) Paginate(ctx context.Context, opts rowguard.PaginationOptions) (*rowguard.Page, error) {
	rows, err := q.run(ctx)
	if err != nil {
		return nil, err
	}
	offset, err := decodeCursor(opts.Cursor)
	if err != nil {
		return nil, err
	}
	size := opts.NumItems
	if size <= 0 {
		size = len(rows)
	}
	if offset > len(rows) {
		offset = len(rows)
	}
	end := offset + size
	if end > len(rows) {
		end = len(rows)
	}
	docs := make([]rowguard.Document, 0, end-offset)
	for _, r := range rows[offset:end] {
		docs = append(docs, r.doc)
	}
	return &rowguard.Page{
		Documents: docs,
		Continue:  encodeCursor(end),
		IsDone:    end == len(rows),
	}, nil
}

// Iter returns a cursor over the query's results.
func (q *Query) Iter(ctx context.Context) rowguard.Cursor {
	rows, err := q.run(ctx)
	return &memCursor{rows: rows, err: err}
}

// run materializes the traversal: snapshot and clone the table under the
// read lock, then resolve the scan strategy, filters and direction outside
// it so user filter functions never run under the engine lock.
func (q *Query) run(_ context.Context) ([]row, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.db.mu.RLock()
	rows := q.db.snapshot(q.table)
	for i := range rows {
		doc, err := clone(rows[i].doc)
		if err != nil {
			q.db.mu.RUnlock()
			return nil, err
		}
		rows[i].doc = doc
	}
	q.db.mu.RUnlock()

	var err error
	switch q.scan {
	case scanIndex:
		rows, err = q.runIndex(rows)
	case scanSearch:
		rows, err = q.runSearch(rows)
	}
	if err != nil {
		return nil, err
	}
	for _, f := range q.filters {
		kept := rows[:0]
		for _, r := range rows {
			if f(r.doc) {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	if q.order == rowguard.Desc {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return rows, nil
}

func (q *Query) runIndex(rows []row) ([]row, error) {
	t := q.db.schema.Table(q.table)
	if t == nil {
		return nil, fmt.Errorf("memdb: table %q has no declared indexes", q.table)
	}
	idx := t.Index(q.index)
	if idx == nil {
		return nil, fmt.Errorf("memdb: unknown index %q on table %q", q.index, q.table)
	}
	if q.rng != nil && len(q.rng.Eq) > len(idx.Fields) {
		return nil, fmt.Errorf("memdb: range pins %d fields but index %q has %d", len(q.rng.Eq), q.index, len(idx.Fields))
	}
	if q.rng != nil {
		kept := rows[:0]
		for _, r := range rows {
			if matchRange(r.doc, idx.Fields, q.rng) {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, field := range idx.Fields {
			if c := compareValues(rows[i].doc[field], rows[j].doc[field]); c != 0 {
				return c < 0
			}
		}
		return rows[i].seq < rows[j].seq
	})
	return rows, nil
}

func (q *Query) runSearch(rows []row) ([]row, error) {
	t := q.db.schema.Table(q.table)
	if t == nil {
		return nil, fmt.Errorf("memdb: table %q has no declared indexes", q.table)
	}
	idx := t.SearchIndex(q.index)
	if idx == nil {
		return nil, fmt.Errorf("memdb: unknown search index %q on table %q", q.index, q.table)
	}
	needle := strings.ToLower(q.search)
	kept := rows[:0]
	for _, r := range rows {
		v, ok := r.doc[idx.Field]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// matchRange reports whether doc falls inside r over the index's fields:
// equality on the leading pinned fields, then bounds on the next field.
func matchRange(doc rowguard.Document, fields []string, r *rowguard.Range) bool {
	for i, want := range r.Eq {
		if compareValues(doc[fields[i]], want) != 0 {
			return false
		}
	}
	if r.Start == nil && r.End == nil {
		return true
	}
	if len(r.Eq) >= len(fields) {
		return false
	}
	v := doc[fields[len(r.Eq)]]
	if b := r.Start; b != nil {
		c := compareValues(v, b.Value)
		if c < 0 || (c == 0 && !b.Inclusive) {
			return false
		}
	}
	if b := r.End; b != nil {
		c := compareValues(v, b.Value)
		if c > 0 || (c == 0 && !b.Inclusive) {
			return false
		}
	}
	return true
}

// compareValues orders arbitrary document field values; see docval.Compare.
func compareValues(a, b any) int {
	return docval.Compare(a, b)
}

func encodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	data, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("memdb: malformed pagination cursor: %w", err)
	}
	offset, err := strconv.Atoi(string(data))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("memdb: malformed pagination cursor %q", cursor)
	}
	return offset, nil
}

// memCursor iterates a materialized result set.
type memCursor struct {
	rows   []row
	pos    int
	err    error
	closed bool
}

// Next returns the next document, or false once exhausted or closed.
func (c *memCursor) Next(_ context.Context) (rowguard.Document, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	if c.closed || c.pos >= len(c.rows) {
		return nil, false, nil
	}
	doc := c.rows[c.pos].doc
	c.pos++
	return doc, true, nil
}

// Close stops the iteration. Safe to call more than once.
func (c *memCursor) Close() error {
	c.closed = true
	return nil
}
