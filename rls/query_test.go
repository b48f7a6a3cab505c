package rls_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowguard/rowguard"
	"github.com/rowguard/rowguard/rls"
)

// fakeDB is a scripted engine whose query cursors count underlying pulls
// and close calls, for asserting laziness and termination propagation.
type fakeDB struct {
	docs map[string]rowguard.Document // key -> doc, addressed by Get
	q    *fakeQuery
}

func (f *fakeDB) Get(_ context.Context, id rowguard.ID) (rowguard.Document, error) {
	doc, ok := f.docs[id.Key]
	if !ok {
		return nil, nil
	}
	return doc, nil
}

func (f *fakeDB) Query(string) rowguard.QueryInitializer { return f.q }

// fakeQuery implements both QueryInitializer and Query over a fixed
// document slice.
type fakeQuery struct {
	docs    []rowguard.Document
	pulls   int
	closes  int
	filters int
	orders  int
	page    *rowguard.Page
}

func (f *fakeQuery) FullScan() rowguard.Query                             { return f }
func (f *fakeQuery) WithIndex(string, *rowguard.Range) rowguard.Query     { return f }
func (f *fakeQuery) WithSearchIndex(string, string) rowguard.Query        { return f }
func (f *fakeQuery) Filter(rowguard.Filter) rowguard.Query                { f.filters++; return f }
func (f *fakeQuery) Order(rowguard.Order) rowguard.Query                  { f.orders++; return f }
func (f *fakeQuery) Collect(context.Context) ([]rowguard.Document, error) { return f.docs, nil }

func (f *fakeQuery) Take(ctx context.Context, n int) ([]rowguard.Document, error) {
	if n > len(f.docs) {
		n = len(f.docs)
	}
	return f.docs[:n], nil
}

func (f *fakeQuery) First(context.Context) (rowguard.Document, error)  { return f.docs[0], nil }
func (f *fakeQuery) Unique(context.Context) (rowguard.Document, error) { return f.docs[0], nil }

func (f *fakeQuery) Paginate(context.Context, rowguard.PaginationOptions) (*rowguard.Page, error) {
	return f.page, nil
}

func (f *fakeQuery) Iter(context.Context) rowguard.Cursor {
	return &fakeCursor{q: f}
}

type fakeCursor struct {
	q   *fakeQuery
	pos int
}

func (c *fakeCursor) Next(context.Context) (rowguard.Document, bool, error) {
	if c.pos >= len(c.q.docs) {
		return nil, false, nil
	}
	c.q.pulls++
	doc := c.q.docs[c.pos]
	c.pos++
	return doc, true, nil
}

func (c *fakeCursor) Close() error {
	c.q.closes++
	return nil
}

// allowFlagged accepts documents whose "ok" field is true.
func allowFlagged() rls.Rule {
	return func(_ context.Context, _ *rls.RuleContext, doc rowguard.Document) (bool, error) {
		ok, _ := doc["ok"].(bool)
		return ok, nil
	}
}

func flagged(name string, ok bool) rowguard.Document {
	return rowguard.Document{"name": name, "ok": ok}
}

func wrapQuery(t *testing.T, q *fakeQuery) rowguard.QueryInitializer {
	t.Helper()
	db := &fakeDB{q: q}
	reader, err := rls.WrapReader(db, rowguard.StaticAuth(nil), rls.Map{
		"items": {Read: allowFlagged()},
	})
	require.NoError(t, err)
	return reader.Query("items")
}

func TestQueryCollectFiltersInOrder(t *testing.T) {
	q := &fakeQuery{docs: []rowguard.Document{
		flagged("a", true), flagged("b", false), flagged("c", true), flagged("d", false),
	}}
	docs, err := wrapQuery(t, q).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0]["name"])
	assert.Equal(t, "c", docs[1]["name"])
}

func TestQueryShapeCallsDelegate(t *testing.T) {
	q := &fakeQuery{docs: []rowguard.Document{flagged("a", true)}}
	wrapped := wrapQuery(t, q).
		Filter(func(rowguard.Document) bool { return true }).
		Order(rowguard.Desc)
	assert.Equal(t, 1, q.filters)
	assert.Equal(t, 1, q.orders)
	// Shape building alone evaluates nothing.
	assert.Zero(t, q.pulls)

	docs, err := wrapped.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestIterSkipsDeniedWithoutTerminating(t *testing.T) {
	q := &fakeQuery{docs: []rowguard.Document{
		flagged("a", true), flagged("b", false), flagged("c", true),
	}}
	cur := wrapQuery(t, q).Iter(context.Background())
	defer cur.Close()

	var names []string
	for {
		doc, ok, err := cur.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, doc["name"].(string))
	}
	// The denied document in the middle is skipped, not a stream end.
	assert.Equal(t, []string{"a", "c"}, names)

	// Exhausted cursors keep reporting completion.
	_, ok, err := cur.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTakeStopsPullingOnceSatisfied(t *testing.T) {
	q := &fakeQuery{docs: []rowguard.Document{
		flagged("a", true), flagged("b", false), flagged("c", true), flagged("d", true),
	}}
	docs, err := wrapQuery(t, q).Take(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0]["name"])
	assert.Equal(t, "c", docs[1]["name"])
	// a, b (denied), c. The fourth document is never pulled.
	assert.Equal(t, 3, q.pulls)
	// Early termination propagates to the underlying cursor.
	assert.Equal(t, 1, q.closes)
}

func TestTakeExhaustedSource(t *testing.T) {
	q := &fakeQuery{docs: []rowguard.Document{flagged("a", true)}}
	docs, err := wrapQuery(t, q).Take(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestFirst(t *testing.T) {
	tests := []struct {
		name string
		docs []rowguard.Document
		want string
	}{
		{name: "first_accepted", docs: []rowguard.Document{flagged("a", false), flagged("b", true)}, want: "b"},
		{name: "all_denied", docs: []rowguard.Document{flagged("a", false)}, want: ""},
		{name: "empty", docs: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := wrapQuery(t, &fakeQuery{docs: tt.docs}).First(context.Background())
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, doc)
				return
			}
			require.NotNil(t, doc)
			assert.Equal(t, tt.want, doc["name"])
		})
	}
}

func TestUnique(t *testing.T) {
	tests := []struct {
		name    string
		docs    []rowguard.Document
		want    string
		wantErr bool
	}{
		{
			name: "single_accepted_among_denied",
			docs: []rowguard.Document{flagged("a", false), flagged("b", true), flagged("c", false)},
			want: "b",
		},
		{
			name:    "duplicate_with_denied_interleaved",
			docs:    []rowguard.Document{flagged("a", true), flagged("x", false), flagged("b", true)},
			wantErr: true,
		},
		{name: "none_accepted", docs: []rowguard.Document{flagged("a", false)}},
		{name: "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := wrapQuery(t, &fakeQuery{docs: tt.docs}).Unique(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, rowguard.IsNotUnique(err))
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, doc)
				return
			}
			require.NotNil(t, doc)
			assert.Equal(t, tt.want, doc["name"])
		})
	}
}

func TestPaginatePreservesEngineCursor(t *testing.T) {
	q := &fakeQuery{page: &rowguard.Page{
		Documents: []rowguard.Document{flagged("a", true), flagged("b", false), flagged("c", true)},
		Continue:  "engine-token",
		IsDone:    false,
	}}
	page, err := wrapQuery(t, q).Paginate(context.Background(), rowguard.PaginationOptions{NumItems: 3})
	require.NoError(t, err)
	// The page shrinks after filtering; the continuation cursor does not
	// move to compensate.
	require.Len(t, page.Documents, 2)
	assert.Equal(t, "engine-token", page.Continue)
	assert.False(t, page.IsDone)
}

func TestCursorCloseIdempotent(t *testing.T) {
	q := &fakeQuery{docs: []rowguard.Document{flagged("a", true)}}
	cur := wrapQuery(t, q).Iter(context.Background())
	require.NoError(t, cur.Close())
	require.NoError(t, cur.Close())
	assert.Equal(t, 1, q.closes)
}
