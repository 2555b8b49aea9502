// Package models - user.go defines the User model for federated identities.
package models

import "time"

// User represents a federated identity, keyed by the (subject, issuer) pair
// extracted from a verified bearer token. Rows are created implicitly the
// first time an identity authenticates and may be pruned once they own no
// scores.
type User struct {
	Subject   string    `json:"subject" db:"subject"`
	Issuer    string    `json:"issuer" db:"issuer"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
