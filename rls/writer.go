package rls

import (
	"context"

	"github.com/rowguard/rowguard"
)

// Writer is the write-side facade: a drop-in rowguard.Writer that sequences
// a read check and the table's write rule before every mutation of an
// existing document. Reads delegate to an internal Reader over the same
// handle and rules, so read semantics are identical on both facades.
type Writer struct {
	raw    rowguard.Writer
	rules  Map
	rc     *RuleContext
	reader *Reader
}

var _ rowguard.Writer = (*Writer)(nil)

// WrapWriter wraps a raw write handle with the given rule map.
// Returns a ConfigError when db is nil.
func WrapWriter(db rowguard.Writer, auth rowguard.Auth, rules Map) (*Writer, error) {
	reader, err := WrapReader(db, auth, rules)
	if err != nil {
		return nil, err
	}
	return &Writer{
		raw:    db,
		rules:  rules,
		rc:     reader.rc,
		reader: reader,
	}, nil
}

// Get delegates to the read facade.
func (w *Writer) Get(ctx context.Context, id rowguard.ID) (rowguard.Document, error) {
	return w.reader.Get(ctx, id)
}

// Query delegates to the read facade.
func (w *Writer) Query(name string) rowguard.QueryInitializer {
	return w.reader.Query(name)
}

// Insert delegates to the engine. Creation of a new row is not gated by the
// read or write rule; only a configured Insert rule, evaluated against the
// candidate value before delegation, can reject it.
func (w *Writer) Insert(ctx context.Context, name string, value rowguard.Document) (rowguard.ID, error) {
	if rule := w.rules.insertRule(name); rule != nil {
		allowed, err := rule(ctx, w.rc, value)
		if err != nil {
			return rowguard.ID{}, err
		}
		if !allowed {
			return rowguard.ID{}, rowguard.NewInsertDeniedError(name)
		}
	}
	return w.raw.Insert(ctx, name, value)
}

// Patch authorizes against the current stored document, then delegates.
func (w *Writer) Patch(ctx context.Context, id rowguard.ID, value rowguard.Document) error {
	if err := w.checkWrite(ctx, "patch", id); err != nil {
		return err
	}
	return w.raw.Patch(ctx, id, value)
}

// Replace authorizes against the current stored document, then delegates.
func (w *Writer) Replace(ctx context.Context, id rowguard.ID, value rowguard.Document) error {
	if err := w.checkWrite(ctx, "replace", id); err != nil {
		return err
	}
	return w.raw.Replace(ctx, id, value)
}

// Delete authorizes against the current stored document, then delegates.
func (w *Writer) Delete(ctx context.Context, id rowguard.ID) error {
	if err := w.checkWrite(ctx, "delete", id); err != nil {
		return err
	}
	return w.raw.Delete(ctx, id)
}

// checkWrite is the mandatory pre-mutation sequence: resolve the target
// through the read path, then evaluate the write rule against the stored
// document, so write rules reason about pre-mutation state. No isolation
// couples the check to the following mutation; a concurrent writer can
// change the document between the two.
func (w *Writer) checkWrite(ctx context.Context, op string, id rowguard.ID) error {
	doc, err := w.reader.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return rowguard.NewNoAccessError(id)
	}
	allowed, err := w.rules.writePredicate(w.rc, id.Table)(ctx, doc)
	if err != nil {
		return err
	}
	if !allowed {
		return rowguard.NewWriteDeniedError(op, id)
	}
	return nil
}
