// Package kinds describes each entry kind to the generic sync machinery: which
// remote collection it lives in, how it is encoded to a remote field map, and
// which fields identify "the same event" when no remote id is known yet.
package kinds

import (
	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
)

// Kind is the per-kind descriptor consumed by the reconciler.
type Kind[E any] struct {
	// Name is a short human label, e.g. "diary".
	Name string

	// Collection is the remote collection name.
	Collection string

	// Header exposes the sync bookkeeping embedded in the entry.
	Header func(*E) *models.Header

	// Encode builds the remote field map, including userId and timestamp.
	Encode func(E) map[string]any

	// Decode parses a remote field map. Only UserID and Timestamp of the
	// resulting header are filled.
	Decode func(map[string]any) (E, error)

	// MatchKey returns the content identity of an entry. Two entries with
	// equal keys are considered the same event. The key includes the
	// timestamp.
	MatchKey func(E) string

	// CopyPayload overwrites the kind-specific fields of dst with src's,
	// leaving the header alone.
	CopyPayload func(dst *E, src E)
}

const (
	fieldUserID    = "userId"
	fieldTimestamp = "timestamp"
)

func encodeHeader(h models.Header, fields map[string]any) map[string]any {
	fields[fieldUserID] = h.UserID
	fields[fieldTimestamp] = h.Timestamp
	return fields
}

func decodeHeader(fields map[string]any) (models.Header, error) {
	userID, err := String(fields, fieldUserID)
	if err != nil {
		return models.Header{}, err
	}
	ts, err := Int64(fields, fieldTimestamp)
	if err != nil {
		return models.Header{}, err
	}
	return models.Header{UserID: userID, Timestamp: ts}, nil
}
