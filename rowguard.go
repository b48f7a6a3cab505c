package rowguard

import "context"

// Reader is the read-side surface of a document engine.
type Reader interface {
	// Get fetches a document by reference.
	// Returns nil, nil if the document does not exist.
	Get(ctx context.Context, id ID) (Document, error)

	// Query returns a query initializer bound to the given table.
	Query(table string) QueryInitializer
}

// Writer is the full read/write surface of a document engine.
type Writer interface {
	Reader

	// Insert stores a new document in the given table and returns its ID.
	// The engine stamps the FieldID and FieldCreationTime system fields.
	Insert(ctx context.Context, table string, value Document) (ID, error)

	// Patch merges the given top-level fields into an existing document.
	Patch(ctx context.Context, id ID, value Document) error

	// Replace overwrites an existing document's user fields entirely,
	// preserving its system fields.
	Replace(ctx context.Context, id ID, value Document) error

	// Delete removes an existing document.
	Delete(ctx context.Context, id ID) error
}

// QueryInitializer is the entry point for building a query against one
// table. It offers three traversal strategies; invoking a Query method
// directly on the initializer implies FullScan.
type QueryInitializer interface {
	Query

	// FullScan traverses the whole table in creation order.
	FullScan() Query

	// WithIndex traverses a named index, optionally narrowed by a range.
	// A nil range traverses the full index.
	WithIndex(index string, r *Range) Query

	// WithSearchIndex traverses a named search index, narrowed to the
	// documents matching the query string.
	WithSearchIndex(index, query string) Query
}

// Query is a lazily-executed traversal over one table's documents.
// Shape-building methods (Filter, Order) return a narrowed query and do not
// execute anything; materialization methods run the traversal.
type Query interface {
	// Filter narrows the query to documents the filter accepts.
	Filter(f Filter) Query

	// Order sets the traversal direction over the query's sort key.
	Order(o Order) Query

	// Collect runs the query and returns all matching documents in
	// traversal order.
	Collect(ctx context.Context) ([]Document, error)

	// Take returns at most n documents, pulling no more of the underlying
	// source than needed to produce them.
	Take(ctx context.Context, n int) ([]Document, error)

	// First returns the first matching document, or nil, nil when the
	// query matches nothing.
	First(ctx context.Context) (Document, error)

	// Unique returns the single matching document, nil, nil when the query
	// matches nothing, and a NotUniqueError when it matches more than one.
	Unique(ctx context.Context) (Document, error)

	// Paginate runs one page of the query. The returned page carries a
	// continuation cursor for the next call.
	Paginate(ctx context.Context, opts PaginationOptions) (*Page, error)

	// Iter returns a cursor for manual forward iteration. The caller must
	// Close it when stopping early.
	Iter(ctx context.Context) Cursor
}

// Cursor is a lazy, stateful handle producing a query's documents one at a
// time.
type Cursor interface {
	// Next pulls the next document. The boolean is false once the cursor
	// is exhausted.
	Next(ctx context.Context) (Document, bool, error)

	// Close releases any resources held by the traversal. It is safe to
	// call more than once.
	Close() error
}

// Filter is an engine-evaluated predicate narrowing a query.
type Filter func(Document) bool

// Order is the traversal direction of a query over its sort key.
type Order int

// Traversal directions.
const (
	// Asc traverses the sort key in ascending order. This is the default.
	Asc Order = iota

	// Desc traverses the sort key in descending order.
	Desc
)

// Range narrows an index traversal. Eq pins the leading index fields to
// exact values; Start and End bound the next index field.
type Range struct {
	Eq    []any
	Start *Bound
	End   *Bound
}

// Bound is one end of an index range.
type Bound struct {
	Value     any
	Inclusive bool
}

// PaginationOptions selects one page of a query.
type PaginationOptions struct {
	// Cursor is the continuation cursor from the previous page, or ""
	// for the first page.
	Cursor string

	// NumItems is the requested page size.
	NumItems int
}

// Page is one page of a paginated query.
type Page struct {
	// Documents are the page's results in traversal order.
	Documents []Document

	// Continue is the cursor to pass to the next Paginate call.
	Continue string

	// IsDone reports whether the traversal is exhausted.
	IsDone bool
}
