package runstatus

import (
	"strings"
	"time"
)

// State labels where a run is in its lifecycle. The set is open: the router
// writes free-form stage labels ("competitor_scored" and the like) alongside
// the closed constants below, and unrecognized labels from newer deployments
// must survive a round-trip untouched.
type State string

const (
	StateQueued     State = "Queued"
	StateProcessing State = "Processing"
	StateCompleted  State = "Completed"
	StateFailed     State = "Failed"
	StateUnknown    State = "Unknown"
)

// ParseState maps a raw label to a State. Known lifecycle labels normalize
// to their constants; anything else passes through as a free-form stage tag.
func ParseState(value string) State {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StateUnknown
	}
	for _, known := range []State{StateQueued, StateProcessing, StateCompleted, StateFailed, StateUnknown} {
		if strings.EqualFold(trimmed, string(known)) {
			return known
		}
	}
	return State(trimmed)
}

// Terminal reports whether a state ends the run lifecycle.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Idempotency markers consulted by the router. Once true, never unset.
const (
	MarkerOutlineEnqueued    = "outlineEnqueued"
	MarkerSectionsEnqueued   = "sectionsEnqueued"
	MarkerAssembleEnqueued   = "assembleEnqueued"
	MarkerWaitingForEvidence = "waitingForEvidence"
)

// CompletionMarker names the marker a worker sets after finishing a stage,
// e.g. "competitorEnrichCompleted" for stage "competitorEnrich".
func CompletionMarker(stage string) string {
	return stage + "Completed"
}

// HistoryEvent is one entry in the append-only audit trail. History is
// informational; only markers and state drive control flow.
type HistoryEvent struct {
	At    time.Time `json:"at"`
	Phase string    `json:"phase"`
	Op    string    `json:"op"`
	Note  string    `json:"note,omitempty"`
	Error string    `json:"error,omitempty"`
}

// Document is the per-run status record persisted at <prefix>status.json.
type Document struct {
	RunID     string          `json:"runId"`
	State     State           `json:"state"`
	Markers   map[string]bool `json:"markers"`
	Flags     map[string]bool `json:"flags"`
	History   []HistoryEvent  `json:"history"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Marker reports whether the named marker is set. Missing map and missing
// key both read as false.
func (d Document) Marker(name string) bool {
	if d.Markers == nil {
		return false
	}
	return d.Markers[name]
}

// Known flag keys and their defaults. Flags are re-normalized against this
// table on every write so consumers never see a partial flag map.
const (
	FlagViabilityScoring    = "viabilityScoring"
	FlagStrictAssembly      = "strictAssembly"
	FlagExtendedDiagnostics = "extendedDiagnostics"
)

// DefaultFlags returns a freshly-populated flag map with repository defaults.
func DefaultFlags() map[string]bool {
	return map[string]bool{
		FlagViabilityScoring:    true,
		FlagStrictAssembly:      false,
		FlagExtendedDiagnostics: false,
	}
}

// Flags returns a fully-populated flag map for a document, tolerating a
// missing or malformed flags field.
func Flags(doc Document) map[string]bool {
	flags := DefaultFlags()
	for name, value := range doc.Flags {
		flags[name] = value
	}
	return flags
}
