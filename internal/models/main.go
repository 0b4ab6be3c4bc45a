// Package models defines the core data structures shared by the vault
// snapshot, the reconciliation engine and the HTTP layer.
package models

// VaultEntry is an already-decrypted credential taken from the existing vault.
type VaultEntry struct {
	// ID is the unique identifier of the entry in the vault.
	ID string `json:"id"`
	// Name is the display name of the entry.
	Name string `json:"name"`
	// URL is the site or service the credential belongs to.
	URL string `json:"url"`
	// Username is the login name.
	Username string `json:"username"`
	// Password is the plaintext password. It is never serialized.
	Password string `json:"-"`
	// Note holds free-form user text.
	Note string `json:"note"`
	// Version is the sync version of the entry.
	Version int64 `json:"version"`
}

// DecisionKind classifies how an incoming record relates to the vault.
type DecisionKind string

const (
	// NewEntry means no existing entry is similar enough.
	NewEntry DecisionKind = "new_entry"
	// ExactDuplicate means every compared field is identical after normalization.
	ExactDuplicate DecisionKind = "exact_duplicate"
	// FuzzyCandidate means the best existing entry scored at or above the high threshold.
	FuzzyCandidate DecisionKind = "fuzzy_candidate"
	// Conflict means an entry shares the url but differs materially elsewhere.
	Conflict DecisionKind = "conflict"
)
