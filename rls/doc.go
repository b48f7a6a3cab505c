// Package rls enforces row-level security over a document database handle.
//
// The package wraps a rowguard.Reader or rowguard.Writer in a drop-in
// replacement that evaluates per-table access rules on every document read
// and on every mutation, so application code written against the raw engine
// interface needs no changes beyond receiving the wrapped handle.
//
// # Rules
//
// A Rule decides access for one candidate document:
//
//	func(ctx context.Context, rc *rls.RuleContext, doc rowguard.Document) (bool, error)
//
// Rules are grouped per table into a Rules value with three optional slots
// (Read, Write, Insert) and supplied once at wrap time as a Map keyed by
// table name:
//
//	rules := rls.Map{
//	    "messages": {
//	        Read: func(ctx context.Context, rc *rls.RuleContext, doc rowguard.Document) (bool, error) {
//	            if published, _ := doc["published"].(bool); published {
//	                return true, nil
//	            }
//	            id, err := rc.Auth.UserIdentity(ctx)
//	            return id != nil, err
//	        },
//	        Write: rls.Owner("author"),
//	    },
//	}
//	db, err := rls.WrapWriter(raw, auth, rules)
//
// A missing table entry, or a nil slot within one, grants unrestricted
// access for that operation. This default is fail-open: an unlisted table is
// a silent full-access grant, not an error. Configure an explicit rule (or
// DenyAll) for every table that needs protection, and test the coverage of
// the map directly.
//
// # Reads
//
// Get returns nil for documents whose read rule denies access, exactly as
// for documents that do not exist; callers cannot distinguish the two.
// Queries filter denied documents out of every materialization path
// (Collect, Take, First, Unique, Paginate, manual iteration) while
// preserving the engine's result order. Filtering is applied after the
// engine executes the query, so a paginated page may come back shorter than
// requested; the page's continuation cursor is the engine's own and must be
// followed until the engine reports IsDone.
//
// # Writes
//
// Insert is not gated by read or write rules; only a configured Insert rule
// can reject it. Patch, Replace and Delete each resolve the target through
// the read path first, failing with a NoAccessError that conflates
// "nonexistent" with "not readable". They then evaluate the write rule
// against the current stored document, not the proposed new value, failing
// with a WriteDeniedError on denial. Only after both checks is the mutation
// delegated to the engine. The check and the mutation are not performed
// under any isolation; a concurrent writer can change the document between
// them.
//
// # Rule evaluation context
//
// Rules receive the ambient RuleContext, which carries the identity
// provider and a raw, unwrapped Reader for consulting other rows. Rules
// must never be handed the wrapped handle: a rule reading through the
// wrapper would recursively evaluate rules without bound. The wrap
// constructors install the raw handle themselves; rule authors only ever
// see rc.DB.
package rls
