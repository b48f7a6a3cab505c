// Package rowguard defines the generic document-database access surface that
// the row-level-security layer in package rls mediates.
//
// The package contains only contracts and shared data types: Document and ID
// for addressing records, the Reader/Writer interfaces implemented by storage
// engines, the Query/Cursor abstraction for lazy result traversal, the Auth
// identity collaborator, and the error kinds surfaced by the mediation layer.
// It has no behavior of its own; engine backends (package memdb, package
// sqldoc) implement these interfaces, and package rls wraps them.
//
// # Readers and writers
//
// A Reader resolves documents by reference and builds queries:
//
//	doc, err := db.Get(ctx, id)        // nil, nil when the document is absent
//	q := db.Query("messages")          // QueryInitializer bound to one table
//
// A Writer extends Reader with the four mutation operations:
//
//	id, err := db.Insert(ctx, "messages", rowguard.Document{"body": "hi"})
//	err = db.Patch(ctx, id, rowguard.Document{"body": "edited"})
//	err = db.Replace(ctx, id, rowguard.Document{"body": "rewritten"})
//	err = db.Delete(ctx, id)
//
// # Queries
//
// A QueryInitializer offers three traversal strategies: FullScan (creation
// order), WithIndex (a named index with an optional range), and
// WithSearchIndex (a named search index with a query string). Shape-building
// calls (Filter, Order) and materialization calls (Collect, Take, First,
// Unique, Paginate) invoked directly on the initializer imply a full scan.
//
// Materialization is lazy until requested. Manual iteration uses Iter:
//
//	cur := db.Query("messages").Iter(ctx)
//	defer cur.Close()
//	for {
//		doc, ok, err := cur.Next(ctx)
//		if err != nil || !ok {
//			break
//		}
//		// ...
//	}
//
// # System fields
//
// Engines stamp two fields on every stored document: FieldID holds the
// string form of the document's ID, and FieldCreationTime holds the insert
// timestamp in Unix milliseconds. Full scans traverse documents in creation
// order.
package rowguard
