package rls

import (
	"context"

	"github.com/rowguard/rowguard"
)

// Reader is the read-side facade: a drop-in rowguard.Reader that evaluates
// each table's read rule on every document it surfaces.
type Reader struct {
	raw   rowguard.Reader
	rules Map
	rc    *RuleContext
}

var _ rowguard.Reader = (*Reader)(nil)

// WrapReader wraps a raw read handle with the given rule map. Rules consult
// auth for the caller's identity and receive db itself, unwrapped, for
// reading other rows. Returns a ConfigError when db is nil.
func WrapReader(db rowguard.Reader, auth rowguard.Auth, rules Map) (*Reader, error) {
	if db == nil {
		return nil, rowguard.NewNilHandleError()
	}
	return &Reader{
		raw:   db,
		rules: rules,
		rc:    &RuleContext{Auth: auth, DB: db},
	}, nil
}

// Get fetches the document and evaluates its table's read rule. A denied
// document is reported as absent, indistinguishable from one that does not
// exist.
func (r *Reader) Get(ctx context.Context, id rowguard.ID) (rowguard.Document, error) {
	doc, err := r.raw.Get(ctx, id)
	if err != nil || doc == nil {
		return nil, err
	}
	allowed, err := r.rules.readPredicate(r.rc, id.Table)(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, nil
	}
	return doc, nil
}

// Query returns a query initializer bound to the table's read predicate.
func (r *Reader) Query(name string) rowguard.QueryInitializer {
	return &table{
		src:  r.raw.Query(name),
		name: name,
		pred: r.rules.readPredicate(r.rc, name),
	}
}
