package store

import "context"

// ApplyFunc mutates doc in place and reports whether it changed. A backend
// persists a changed document even when the function also returns an error,
// so a caller can record a side effect (such as deleting an expired record)
// and still fail the operation.
//
// Backends with optimistic concurrency may invoke an ApplyFunc more than once
// against fresh copies of the document; it must not depend on state from a
// previous invocation.
type ApplyFunc func(doc *Document) (changed bool, err error)

// Backend persists a Document. Every call reads the latest persisted state;
// nothing is cached between calls.
type Backend interface {
	// Init creates an empty document if none exists.
	Init(ctx context.Context) error
	// Load returns a fresh copy of the persisted document.
	Load(ctx context.Context) (*Document, error)
	// Apply runs fn as one read-modify-write unit.
	Apply(ctx context.Context, fn ApplyFunc) error
	// Close releases backend resources.
	Close() error
}
