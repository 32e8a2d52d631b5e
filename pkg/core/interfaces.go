package core

import "errors"

var (
	// ErrLogNotFound means the header carries no commitment log
	ErrLogNotFound = errors.New("commitment log not found")

	// ErrMultipleLogs means the header carries more than one commitment log
	ErrMultipleLogs = errors.New("multiple commitment logs found")
)

// PostHashes is the decoded payload of a mapping commitment log
type PostHashes struct {
	BlockHash         Hash
	TransactionHashes []Hash
}

// LogDecoder extracts the embedded commitment from a header.
// It returns a not-found error when the header carries none and an
// ambiguity error when it carries more than one.
type LogDecoder interface {
	FindLog(header *Header) (*PostHashes, error)
}

// LeafTracker derives chain tips from observed heads
type LeafTracker interface {
	// AddHead records a head. Returns false if it was already known.
	AddHead(head *Head) bool

	// Leaves returns the hashes of observed heads without observed children
	Leaves() []Hash

	// Len reports how many heads are inside the window
	Len() int
}
