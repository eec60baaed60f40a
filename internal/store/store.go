// Package store defines the object-store dependency of the delivery gateway
// and provides the production Cloudflare R2 implementation.
//
// The gateway is injected with a Store rather than constructing one, which
// keeps the HTTP handlers unit-testable against an in-memory fake.
package store

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when the requested key does not exist in the
// store. Callers must answer 404 — distinct from transport failures, which
// surface as ordinary errors and become 500s.
var ErrNotFound = errors.New("store: object not found")

// Range is a byte range request. End < 0 means "through end of object".
type Range struct {
	Start int64
	End   int64
}

// Object is the result of a fetch. Body streams the object (or range) bytes
// and must be closed by the caller; it is never buffered in memory.
type Object struct {
	// Body streams the fetched bytes.
	Body io.ReadCloser

	// Size is the total object size in bytes, even for partial results.
	Size int64

	// Start and End bound the served range (inclusive) when Partial.
	Start int64
	End   int64

	// Partial reports whether the store honored a byte range.
	Partial bool
}

// Length is the number of body bytes the object will yield.
func (o *Object) Length() int64 {
	if o.Partial {
		return o.End - o.Start + 1
	}
	return o.Size
}

// Store is a read-only object store exposing get-by-key with an optional
// byte range. The delivery gateway never writes.
type Store interface {
	// Get fetches an object. byteRange may be nil for a full fetch.
	// Returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string, byteRange *Range) (*Object, error)
}
