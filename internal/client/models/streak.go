package models

// Streak is the per-user incremental streak state.
type Streak struct {
	UserID string `json:"userId" yaml:"userId"`

	Current int `json:"current" yaml:"current"`
	Longest int `json:"longest" yaml:"longest"`

	// LastEntryDateKey is empty before the first qualifying entry.
	LastEntryDateKey string `json:"lastEntryDateKey,omitempty" yaml:"lastEntryDateKey,omitempty"`
}
