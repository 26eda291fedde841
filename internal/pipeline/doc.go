// Package pipeline drives one conversion pass over the catalog.
//
// The Driver lists the catalog once, plans each document, and for documents
// that need work resolves the source file, converts it, and registers the
// output. Documents are processed strictly one at a time. Per-document
// failures are folded into the Summary; only a catalog that cannot be listed
// aborts the run. Cancellation is honored between documents: the document in
// flight completes (bounded by the converter's own timeout) before the run
// stops and reports what it has so far.
package pipeline
