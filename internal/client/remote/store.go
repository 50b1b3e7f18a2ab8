// Package remote defines the capability the client needs from the
// authoritative store: create, update and list documents of a collection,
// keyed by user. Adapters live in the subpackages.
package remote

import (
	"context"
	"errors"
)

// Adapters return these (possibly wrapped) so callers can tell failure
// classes apart. The reconciler treats all of them as retryable.
var (
	ErrUnavailable  = errors.New("remote store unavailable")
	ErrUnauthorized = errors.New("remote store rejected credentials")
	ErrNotFound     = errors.New("remote document not found")
)

// Document is one remote record.
type Document struct {
	ID     string
	Fields map[string]any
}

// Store is the remote store capability.
type Store interface {
	// Create stores a new document and returns the id the store assigned.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Update overwrites the document with the given id.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// QueryByUser lists every document of the user in the collection.
	QueryByUser(ctx context.Context, collection, userID string) ([]Document, error)
}

// Pinger reports whether the store is reachable right now.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is what adapters implement: a Store that can be probed and closed.
type Backend interface {
	Store
	Pinger
	Close() error
}

// Disabled is the Backend of a local-only client. Every call fails with
// ErrUnavailable.
type Disabled struct{}

func (Disabled) Create(context.Context, string, map[string]any) (string, error) {
	return "", ErrUnavailable
}

func (Disabled) Update(context.Context, string, string, map[string]any) error {
	return ErrUnavailable
}

func (Disabled) QueryByUser(context.Context, string, string) ([]Document, error) {
	return nil, ErrUnavailable
}

func (Disabled) Ping(context.Context) error { return ErrUnavailable }
func (Disabled) Close() error               { return nil }
