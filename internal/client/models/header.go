// Package models defines the entry kinds recorded by the moodkeeper client
// and the bookkeeping each local row carries for synchronization.
package models

// SyncState tells whether a local row is known to match the remote store.
type SyncState string

const (
	// SyncPending means local content may not be reflected remotely yet.
	SyncPending SyncState = "pending"
	// SyncSynced means the last push or pull for the row succeeded.
	SyncSynced SyncState = "synced"
)

// Header is the part of every entry that the reconciler owns.
type Header struct {
	// LocalID is assigned once at creation and is the local primary key.
	LocalID string `json:"localId" yaml:"localId"`

	// UserID scopes every query.
	UserID string `json:"userId" yaml:"userId"`

	// Timestamp is the event time in milliseconds since epoch. It is the
	// ordering and matching key and is not unique.
	Timestamp int64 `json:"timestamp" yaml:"timestamp"`

	// RemoteID is empty until the row has been written remotely. Once set
	// it never changes.
	RemoteID string `json:"remoteId,omitempty" yaml:"remoteId,omitempty"`

	SyncState SyncState `json:"syncState" yaml:"syncState"`

	// UpdatedAt is the local modification time in milliseconds since epoch.
	UpdatedAt int64 `json:"updatedAt" yaml:"updatedAt"`
}

// Linked reports whether the row has a remote identity.
func (h *Header) Linked() bool { return h.RemoteID != "" }

// MarkSynced attaches remoteID if the row has none and flips it to synced.
// An existing remote id is kept.
func (h *Header) MarkSynced(remoteID string) {
	if h.RemoteID == "" {
		h.RemoteID = remoteID
	}
	h.SyncState = SyncSynced
}
