package rls

import (
	"context"

	"github.com/rowguard/rowguard"
)

// RuleContext carries the ambient per-request state rules evaluate against.
type RuleContext struct {
	// Auth is the identity provider for the current caller.
	Auth rowguard.Auth

	// DB is a raw, unwrapped read handle for rules that consult other
	// rows. Reads through it bypass rule evaluation entirely; handing a
	// rule the wrapped handle instead would recurse without bound.
	DB rowguard.Reader
}

// Rule decides whether the current caller may perform one operation on one
// candidate document. Returning false denies; returning an error aborts the
// surrounding call with that error.
type Rule func(ctx context.Context, rc *RuleContext, doc rowguard.Document) (bool, error)

// Rules holds the optional per-operation rules for one table. A nil slot
// grants unrestricted access for that operation.
type Rules struct {
	// Read gates every document surfaced by Get and by queries.
	Read Rule

	// Write gates Patch, Replace and Delete. It is evaluated against the
	// current stored document, before the mutation is applied.
	Write Rule

	// Insert gates Insert. It is evaluated against the candidate value,
	// which has no system fields yet.
	Insert Rule
}

// Map is the table-keyed rule configuration supplied at wrap time.
// Tables without an entry are unrestricted.
type Map map[string]Rules

// Extend returns a new Map combining m with the given maps. Later maps
// overwrite earlier entries for the same table.
func (m Map) Extend(others ...Map) Map {
	merged := make(Map, len(m))
	for table, rs := range m {
		merged[table] = rs
	}
	for _, other := range others {
		for table, rs := range other {
			merged[table] = rs
		}
	}
	return merged
}

// predicate is a rule bound to a fixed table and ambient context, the form
// the cursor and query wrappers consume. A nil-rule table resolves to a
// predicate that always accepts.
type predicate func(ctx context.Context, doc rowguard.Document) (bool, error)

func allowAll(context.Context, rowguard.Document) (bool, error) {
	return true, nil
}

// readPredicate resolves the read rule for table and binds it to rc.
func (m Map) readPredicate(rc *RuleContext, table string) predicate {
	return bind(m[table].Read, rc)
}

// writePredicate resolves the write rule for table and binds it to rc.
func (m Map) writePredicate(rc *RuleContext, table string) predicate {
	return bind(m[table].Write, rc)
}

// insertRule returns the insert rule for table, or nil when unrestricted.
func (m Map) insertRule(table string) Rule {
	return m[table].Insert
}

func bind(rule Rule, rc *RuleContext) predicate {
	if rule == nil {
		return allowAll
	}
	return func(ctx context.Context, doc rowguard.Document) (bool, error) {
		return rule(ctx, rc, doc)
	}
}

// AllowAll returns a rule that accepts every document. Equivalent to
// leaving the slot nil; useful for making the fail-open default explicit.
func AllowAll() Rule {
	return func(context.Context, *RuleContext, rowguard.Document) (bool, error) {
		return true, nil
	}
}

// DenyAll returns a rule that rejects every document.
func DenyAll() Rule {
	return func(context.Context, *RuleContext, rowguard.Document) (bool, error) {
		return false, nil
	}
}

// Authenticated returns a rule that accepts any document when the caller is
// authenticated and rejects otherwise.
func Authenticated() Rule {
	return func(ctx context.Context, rc *RuleContext, _ rowguard.Document) (bool, error) {
		id, err := rc.Auth.UserIdentity(ctx)
		if err != nil {
			return false, err
		}
		return id != nil, nil
	}
}

// Owner returns a rule that accepts a document when the caller's identity
// subject equals the document's named field. Unauthenticated callers and
// documents missing the field are rejected.
func Owner(field string) Rule {
	return func(ctx context.Context, rc *RuleContext, doc rowguard.Document) (bool, error) {
		id, err := rc.Auth.UserIdentity(ctx)
		if err != nil {
			return false, err
		}
		if id == nil {
			return false, nil
		}
		owner, ok := doc[field].(string)
		return ok && owner == id.Subject, nil
	}
}

// And returns a rule that accepts only when every given rule accepts.
// Evaluation stops at the first rejection or error.
func And(rules ...Rule) Rule {
	return func(ctx context.Context, rc *RuleContext, doc rowguard.Document) (bool, error) {
		for _, rule := range rules {
			ok, err := rule(ctx, rc, doc)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Or returns a rule that accepts when any given rule accepts.
// Evaluation stops at the first acceptance or error.
func Or(rules ...Rule) Rule {
	return func(ctx context.Context, rc *RuleContext, doc rowguard.Document) (bool, error) {
		for _, rule := range rules {
			ok, err := rule(ctx, rc, doc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}
