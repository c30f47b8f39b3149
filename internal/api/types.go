package api

import (
	"time"

	"loom/internal/runstatus"
	"loom/internal/workers"
)

// StartRequest is the payload of POST /api/campaign/start. Page and UserID
// feed the path resolver and are sanitized there; validation here only
// bounds their size. Competitors and Sources are optional seed inputs
// written under the run prefix before the first stage runs.
type StartRequest struct {
	Page        string                       `json:"page" validate:"max=128"`
	UserID      string                       `json:"userId" validate:"max=128"`
	Competitors []workers.DeclaredCompetitor `json:"competitors,omitempty" validate:"max=100,dive"`
	Sources     []workers.DeclaredSource     `json:"sources,omitempty" validate:"max=500,dive"`
	Flags       map[string]bool              `json:"flags,omitempty"`
}

// StartResponse returns the identity a client needs to poll the run.
type StartResponse struct {
	RunID  string `json:"runId"`
	Prefix string `json:"prefix"`
}

// StatusResponse wraps the run status document.
type StatusResponse struct {
	Status runstatus.Document `json:"status"`
}

// RunIndexEntry is one row of the run index used by GET /api/runs.
type RunIndexEntry struct {
	RunID     string    `json:"runId"`
	Prefix    string    `json:"prefix"`
	Page      string    `json:"page"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// RunIndex is the persisted run listing.
type RunIndex struct {
	Runs []RunIndexEntry `json:"runs"`
}

// RunsResponse is the payload of GET /api/runs.
type RunsResponse struct {
	Runs []RunIndexEntry `json:"runs"`
}
