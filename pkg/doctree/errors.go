package doctree

import "errors"

// Lookup errors
var (
	// ErrStaleKey means a key no longer names a live node. Mutation engines
	// treat it as a no-op because a concurrent change already won.
	ErrStaleKey = errors.New("doctree: stale node key")
	ErrNotText  = errors.New("doctree: node is not a text leaf")
	ErrNotElem  = errors.New("doctree: node cannot hold children")
	ErrNotMark  = errors.New("doctree: node is not a mark")
	ErrRoot     = errors.New("doctree: operation not allowed on root")
)

// Structural errors
var (
	ErrOffsetOutOfRange = errors.New("doctree: offset out of range")
	ErrCycle            = errors.New("doctree: node cannot contain its own ancestor")
	ErrAttached         = errors.New("doctree: node is already attached")
	ErrInsideDeletion   = errors.New("doctree: text cannot be inserted inside a deletion")
	ErrReadOnly         = errors.New("doctree: read-only transaction")
	ErrTransformLoop    = errors.New("doctree: node transforms did not settle")
)
