package rls

import (
	"context"

	"github.com/rowguard/rowguard"
)

// cursor states.
const (
	statePending = iota
	stateExhausted
)

// cursor filters an underlying cursor through a read predicate. Denied
// documents are skipped invisibly: the consumer sees the accepted documents
// in the underlying order and completion only when the source completes.
type cursor struct {
	src    rowguard.Cursor
	pred   predicate
	state  int
	closed bool
}

func newCursor(src rowguard.Cursor, pred predicate) *cursor {
	return &cursor{src: src, pred: pred}
}

// Next pulls from the underlying cursor until an accepted document or
// exhaustion. A run of denied documents is consumed iteratively, so the
// worst case is a scan of the whole remaining source, not a stack frame per
// denial.
func (c *cursor) Next(ctx context.Context) (rowguard.Document, bool, error) {
	if c.state == stateExhausted {
		return nil, false, nil
	}
	for {
		doc, ok, err := c.src.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			c.state = stateExhausted
			return nil, false, nil
		}
		allowed, err := c.pred(ctx, doc)
		if err != nil {
			return nil, false, err
		}
		if allowed {
			return doc, true, nil
		}
	}
}

// Close propagates termination to the underlying cursor. Safe to call more
// than once.
func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.src.Close()
}
