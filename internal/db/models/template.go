// Package models - template.go defines the Template, Tag, and Score models
// representing catalog entries, their labels, and per-user ratings.
package models

import "time"

// Template represents a project-template descriptor in the catalog.
// SourceFile is the descriptor filename in the upstream repository and is the
// stable join key used by reconciliation; it never changes for the lifetime
// of the row.
type Template struct {
	ID          string    `json:"id"`
	SourceFile  string    `json:"source_file"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Language    string    `json:"language"`
	Picture     *string   `json:"picture,omitempty"`
	GitLink     string    `json:"git_link"`
	GitCheckout *string   `json:"git_checkout,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	// Joined fields (not stored in the templates table)
	Tags  []string `json:"tags"`
	Score *float64 `json:"score"` // mean of all ratings; nil when unrated
}

// Tag represents a short label attached to templates. Names are
// case-normalized and unique across the catalog.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Score represents one user's rating of one template. At most one row
// exists per (template, owner) pair.
type Score struct {
	ID           string    `json:"id"`
	TemplateID   string    `json:"template_id"`
	Value        float64   `json:"value"`
	OwnerSubject string    `json:"owner_subject"`
	OwnerIssuer  string    `json:"owner_issuer"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
