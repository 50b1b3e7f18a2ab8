// Package documents stores the schemaless documents of the remote store and
// enforces who may read and write them.
package documents

import (
	"context"
	"time"
)

// Document is one stored record. Fields is the JSON object sent by the
// client; UserID is copied from its owner field.
type Document struct {
	ID         string
	Collection string
	UserID     string
	Fields     map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Repository interface {
	Insert(ctx context.Context, d *Document) error
	// Update replaces the fields of the document owned by d.UserID.
	Update(ctx context.Context, d *Document) error
	Get(ctx context.Context, collection, id string) (*Document, error)
	ListByUser(ctx context.Context, collection, userID string) ([]Document, error)
}
