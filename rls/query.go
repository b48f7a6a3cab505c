package rls

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rowguard/rowguard"
)

// query mediates one underlying query with a read predicate. Shape-building
// calls are pure rewrites delegated to the engine; the predicate applies
// only when results materialize.
type query struct {
	src   rowguard.Query
	table string
	pred  predicate
}

var _ rowguard.Query = (*query)(nil)

// Filter delegates to the underlying query and re-wraps the result.
// The predicate is not evaluated here.
func (q *query) Filter(f rowguard.Filter) rowguard.Query {
	return &query{src: q.src.Filter(f), table: q.table, pred: q.pred}
}

// Order delegates to the underlying query and re-wraps the result.
func (q *query) Order(o rowguard.Order) rowguard.Query {
	return &query{src: q.src.Order(o), table: q.table, pred: q.pred}
}

// Collect materializes the full underlying result set, then drops denied
// documents, preserving the engine's order. Predicates run concurrently
// since the result set is already fixed.
func (q *query) Collect(ctx context.Context) ([]rowguard.Document, error) {
	docs, err := q.src.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return q.filterAll(ctx, docs)
}

// Take streams until n accepted documents are collected or the source is
// exhausted, pulling nothing beyond what that requires.
func (q *query) Take(ctx context.Context, n int) ([]rowguard.Document, error) {
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

// First returns the first accepted document, or nil, nil when there is none.
func (q *query) First(ctx context.Context) (rowguard.Document, error) {
	docs, err := q.Take(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// Unique returns the single accepted document. It pulls one accepted
// document past the first, so a duplicate is detected even when denied
// documents are interleaved between the two.
func (q *query) Unique(ctx context.Context) (rowguard.Document, error) {
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

// Paginate delegates pagination to the engine and filters the returned page.
// The continuation cursor and done flag are the engine's own: a filtered
// page may be shorter than requested, and callers must keep following the
// cursor until the engine reports IsDone.
func (q *query) Paginate(ctx context.Context, opts rowguard.PaginationOptions) (*rowguard.Page, error) {
	page, err := q.src.Paginate(ctx, opts)
	if err != nil {
		return nil, err
	}
	docs, err := q.filterAll(ctx, page.Documents)
	if err != nil {
		return nil, err
	}
	return &rowguard.Page{Documents: docs, Continue: page.Continue, IsDone: page.IsDone}, nil
}

// Iter returns the mediated streaming cursor over the underlying iteration.
func (q *query) Iter(ctx context.Context) rowguard.Cursor {
	return newCursor(q.src.Iter(ctx), q.pred)
}

// filterAll evaluates the predicate over already-materialized documents
// concurrently and returns the accepted ones in their original order.
func (q *query) filterAll(ctx context.Context, docs []rowguard.Document) ([]rowguard.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	allowed := make([]bool, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			ok, err := q.pred(gctx, doc)
			allowed[i] = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]rowguard.Document, 0, len(docs))
	for i, doc := range docs {
		if allowed[i] {
			out = append(out, doc)
		}
	}
	return out, nil
}

// table is the mediated query initializer bound to one table's read
// predicate. Query methods invoked directly on it imply a full scan.
type table struct {
	src  rowguard.QueryInitializer
	name string
	pred predicate
}

var _ rowguard.QueryInitializer = (*table)(nil)

// FullScan wraps the engine's full-table traversal.
func (t *table) FullScan() rowguard.Query {
	return &query{src: t.src.FullScan(), table: t.name, pred: t.pred}
}

// WithIndex wraps the engine's index traversal.
func (t *table) WithIndex(index string, r *rowguard.Range) rowguard.Query {
	return &query{src: t.src.WithIndex(index, r), table: t.name, pred: t.pred}
}

// WithSearchIndex wraps the engine's search-index traversal.
func (t *table) WithSearchIndex(index, search string) rowguard.Query {
	return &query{src: t.src.WithSearchIndex(index, search), table: t.name, pred: t.pred}
}

func (t *table) Filter(f rowguard.Filter) rowguard.Query {
	return t.FullScan().Filter(f)
}

func (t *table) Order(o rowguard.Order) rowguard.Query {
	return t.FullScan().Order(o)
}

func (t *table) Collect(ctx context.Context) ([]rowguard.Document, error) {
	return t.FullScan().Collect(ctx)
}

func (t *table) Take(ctx context.Context, n int) ([]rowguard.Document, error) {
	return t.FullScan().Take(ctx, n)
}

func (t *table) First(ctx context.Context) (rowguard.Document, error) {
	return t.FullScan().First(ctx)
}

func (t *table) Unique(ctx context.Context) (rowguard.Document, error) {
	return t.FullScan().Unique(ctx)
}

func (t *table) Paginate(ctx context.Context, opts rowguard.PaginationOptions) (*rowguard.Page, error) {
	return t.FullScan().Paginate(ctx, opts)
}

func (t *table) Iter(ctx context.Context) rowguard.Cursor {
	return t.FullScan().Iter(ctx)
}
