package sqldoc

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rowguard/rowguard"
	"github.com/rowguard/rowguard/internal/docval"
	"github.com/rowguard/rowguard/schema"
)

// Query is the builder for traversals over one document table. SQL provides
// storage order (creation sequence or JSON-extracted index fields); range
// bounds, search matching and filters are evaluated in Go while streaming
// rows.
type Query struct {
	db    *DB
	table string

	scan    scanKind
	index   string
	rng     *rowguard.Range
	search  string
	filters []rowguard.Filter
	order   rowguard.Order
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
	cur := q.Iter(ctx)
	defer cur.Close()
	var out []rowguard.Document
	for {
		doc, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, doc)
	}
}

// Take returns at most n matching documents, closing the row stream as soon
// as they are collected.
func (q *Query) Take(ctx context.Context, n int) ([]rowguard.Document, error) {
	cur := q.Iter(ctx)
	defer cur.Close()
	var out []rowguard.Document
	for len(out) < n {
		doc, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, doc)
	}
	return out, nil
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
// the number of matching documents already consumed.
func (q *Query) Paginate(ctx context.Context, opts rowguard.PaginationOptions) (*rowguard.Page, error) {
	offset, err := decodeCursor(opts.Cursor)
	if err != nil {
		return nil, err
	}
	cur := q.Iter(ctx)
	defer cur.Close()
	for skipped := 0; skipped < offset; skipped++ {
		_, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &rowguard.Page{Continue: encodeCursor(offset), IsDone: true}, nil
		}
	}
	size := opts.NumItems
	docs := make([]rowguard.Document, 0, max(size, 0))
	done := false
	for size <= 0 || len(docs) < size {
		doc, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			done = true
			break
		}
		docs = append(docs, doc)
	}
	if !done {
		// Peek one row past the page to report exhaustion accurately.
		_, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		done = !ok
	}
	return &rowguard.Page{
		Documents: docs,
		Continue:  encodeCursor(offset + len(docs)),
		IsDone:    done,
	}, nil
}

// Iter returns a lazily-streaming cursor over the query's results.
func (q *Query) Iter(ctx context.Context) rowguard.Cursor {
	stmt, args, match, err := q.plan()
	if err != nil {
		return &sqlCursor{err: err}
	}
	defer q.db.logQuery(stmt, time.Now())
	rows, err := q.db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return &sqlCursor{err: fmt.Errorf("sqldoc: querying %s: %w", q.table, err)}
	}
	return &sqlCursor{rows: rows, match: match}
}

// plan builds the SQL statement and the Go-side row matcher.
func (q *Query) plan() (stmt string, args []any, match func(rowguard.Document) bool, err error) {
	dir := "ASC"
	if q.order == rowguard.Desc {
		dir = "DESC"
	}
	orderExprs := []string{"seq " + dir}

	var idx *schema.Index
	var sidx *schema.SearchIndex
	switch q.scan {
	case scanIndex:
		t := q.db.schema.Table(q.table)
		if t == nil {
			return "", nil, nil, fmt.Errorf("sqldoc: table %q has no declared indexes", q.table)
		}
		idx = t.Index(q.index)
		if idx == nil {
			return "", nil, nil, fmt.Errorf("sqldoc: unknown index %q on table %q", q.index, q.table)
		}
		if q.rng != nil && len(q.rng.Eq) > len(idx.Fields) {
			return "", nil, nil, fmt.Errorf("sqldoc: range pins %d fields but index %q has %d", len(q.rng.Eq), q.index, len(idx.Fields))
		}
		exprs := make([]string, 0, len(idx.Fields)+1)
		for _, field := range idx.Fields {
			expr, err := jsonOrderExpr(q.db.dialect, field)
			if err != nil {
				return "", nil, nil, err
			}
			exprs = append(exprs, expr+" "+dir)
		}
		orderExprs = append(exprs, orderExprs...)
	case scanSearch:
		t := q.db.schema.Table(q.table)
		if t == nil {
			return "", nil, nil, fmt.Errorf("sqldoc: table %q has no declared indexes", q.table)
		}
		sidx = t.SearchIndex(q.index)
		if sidx == nil {
			return "", nil, nil, fmt.Errorf("sqldoc: unknown search index %q on table %q", q.index, q.table)
		}
	}

	stmt = rebind(q.db.dialect,
		`SELECT v FROM `+storeTable+` WHERE tbl = ? ORDER BY `+strings.Join(orderExprs, ", "))
	args = []any{q.table}

	rng, search, filters := q.rng, strings.ToLower(q.search), q.filters
	match = func(doc rowguard.Document) bool {
		if idx != nil && rng != nil && !matchRange(doc, idx.Fields, rng) {
			return false
		}
		if sidx != nil {
			v, ok := doc[sidx.Field]
			if !ok || !strings.Contains(strings.ToLower(fmt.Sprint(v)), search) {
				return false
			}
		}
		for _, f := range filters {
			if !f(doc) {
				return false
			}
		}
		return true
	}
	return stmt, args, match, nil
}

// matchRange reports whether doc falls inside r over the index's fields:
// equality on the leading pinned fields, then bounds on the next field.
func matchRange(doc rowguard.Document, fields []string, r *rowguard.Range) bool {
	for i, want := range r.Eq {
		if docval.Compare(doc[fields[i]], want) != 0 {
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
		c := docval.Compare(v, b.Value)
		if c < 0 || (c == 0 && !b.Inclusive) {
			return false
		}
	}
	if b := r.End; b != nil {
		c := docval.Compare(v, b.Value)
		if c > 0 || (c == 0 && !b.Inclusive) {
			return false
		}
	}
	return true
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
		return 0, fmt.Errorf("sqldoc: malformed pagination cursor: %w", err)
	}
	offset, err := strconv.Atoi(string(data))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("sqldoc: malformed pagination cursor %q", cursor)
	}
	return offset, nil
}

// sqlCursor streams rows from an executed statement, applying the Go-side
// matcher before yielding each document.
type sqlCursor struct {
	rows   *sql.Rows
	match  func(rowguard.Document) bool
	err    error
	closed bool
}

// Next returns the next matching document, or false once exhausted.
func (c *sqlCursor) Next(_ context.Context) (rowguard.Document, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	if c.closed {
		return nil, false, nil
	}
	for c.rows.Next() {
		var body []byte
		if err := c.rows.Scan(&body); err != nil {
			return nil, false, fmt.Errorf("sqldoc: scanning row: %w", err)
		}
		doc, err := decodeDoc(body)
		if err != nil {
			return nil, false, err
		}
		if c.match(doc) {
			return doc, true, nil
		}
	}
	if err := c.rows.Err(); err != nil {
		return nil, false, fmt.Errorf("sqldoc: iterating rows: %w", err)
	}
	c.closed = true
	return nil, false, c.rows.Close()
}

// Close releases the underlying row stream. Safe to call more than once.
func (c *sqlCursor) Close() error {
	if c.closed || c.rows == nil {
		return nil
	}
	c.closed = true
	return c.rows.Close()
}
