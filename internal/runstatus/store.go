package runstatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loom/internal/artifact"
	"loom/internal/pathing"
)

// ErrNotFound is returned when a run has no status document yet.
var ErrNotFound = errors.New("status document not found")

// Patch describes one status update. Zero-valued fields are left unchanged;
// Markers merge monotonic-OR, History entries are appended, Flags overlay
// the stored values before defaults are re-applied.
type Patch struct {
	RunID   string
	State   State
	Markers map[string]bool
	Flags   map[string]bool
	History []HistoryEvent
}

// Store reads and writes status documents on top of the artifact store.
type Store struct {
	blobs artifact.Store
	now   func() time.Time
}

// NewStore creates a status store backed by the given blob store.
func NewStore(blobs artifact.Store) *Store {
	return &Store{blobs: blobs, now: func() time.Time { return time.Now().UTC() }}
}

// NewStoreWithClock creates a status store with a fixed clock (tests).
func NewStoreWithClock(blobs artifact.Store, now func() time.Time) *Store {
	return &Store{blobs: blobs, now: now}
}

// Read fetches the status document under prefix.
func (s *Store) Read(ctx context.Context, prefix string) (Document, error) {
	var doc Document
	err := s.blobs.GetJSON(ctx, pathing.StatusPath(prefix), &doc)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return Document{}, fmt.Errorf("%w: %s", ErrNotFound, prefix)
		}
		return Document{}, err
	}
	return doc, nil
}

// Write performs a read-merge-write of patch over the stored document and
// returns the merged result. A missing or unreadable prior document is
// synthesized rather than treated as fatal; losing a status read must never
// lose a stage's update entirely.
func (s *Store) Write(ctx context.Context, prefix string, patch Patch) (Document, error) {
	current, err := s.Read(ctx, prefix)
	if err != nil {
		current = Document{RunID: patch.RunID, Markers: map[string]bool{}, History: []HistoryEvent{}}
	}
	merged := Merge(current, patch, s.now())
	if err := s.blobs.PutJSON(ctx, pathing.StatusPath(prefix), merged); err != nil {
		return Document{}, fmt.Errorf("write status for %s: %w", prefix, err)
	}
	return merged, nil
}

// Merge applies patch over current and returns a new Document. Neither
// input is mutated; the result shares no maps or slices with them, so a
// merged value is safe to hand to a concurrent handler.
func Merge(current Document, patch Patch, now time.Time) Document {
	next := Document{
		RunID:     current.RunID,
		State:     current.State,
		UpdatedAt: now.UTC(),
	}
	if next.RunID == "" {
		next.RunID = patch.RunID
	}
	if patch.State != "" {
		next.State = patch.State
	}
	if next.State == "" {
		next.State = StateUnknown
	}

	next.Markers = make(map[string]bool, len(current.Markers)+len(patch.Markers))
	for name, value := range current.Markers {
		next.Markers[name] = value
	}
	for name, value := range patch.Markers {
		// Monotonic: a marker that is already true stays true.
		next.Markers[name] = next.Markers[name] || value
	}

	next.Flags = DefaultFlags()
	for name, value := range current.Flags {
		next.Flags[name] = value
	}
	for name, value := range patch.Flags {
		next.Flags[name] = value
	}

	next.History = make([]HistoryEvent, 0, len(current.History)+len(patch.History))
	next.History = append(next.History, current.History...)
	for _, event := range patch.History {
		if event.At.IsZero() {
			event.At = now.UTC()
		}
		next.History = append(next.History, event)
	}

	return next
}
