package runstatus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/artifact"
)

const testPrefix = "runs/campaign/anonymous/2025/01/05/r1/"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	blobs, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return NewStore(blobs)
}

func TestReadMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Read(context.Background(), testPrefix)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteSynthesizesDefaultDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc, err := store.Write(ctx, testPrefix, Patch{RunID: "r1", State: StateQueued})
	require.NoError(t, err)
	assert.Equal(t, "r1", doc.RunID)
	assert.Equal(t, StateQueued, doc.State)
	assert.NotNil(t, doc.Markers)
	assert.False(t, doc.UpdatedAt.IsZero())

	stored, err := store.Read(ctx, testPrefix)
	require.NoError(t, err)
	assert.Equal(t, doc.RunID, stored.RunID)
	assert.Equal(t, doc.State, stored.State)
}

func TestMarkersAreMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, testPrefix, Patch{
		RunID:   "r1",
		Markers: map[string]bool{MarkerAssembleEnqueued: true},
	})
	require.NoError(t, err)

	doc, err := store.Write(ctx, testPrefix, Patch{
		Markers: map[string]bool{MarkerAssembleEnqueued: false},
	})
	require.NoError(t, err)
	assert.True(t, doc.Marker(MarkerAssembleEnqueued), "true marker must never be unset")
}

func TestHistoryAppendOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, testPrefix, Patch{
		RunID:   "r1",
		History: []HistoryEvent{{Phase: "router", Op: "afterevidence", Note: "evidence_missing"}},
	})
	require.NoError(t, err)

	doc, err := store.Write(ctx, testPrefix, Patch{
		History: []HistoryEvent{{Phase: "router", Op: "afterevidence", Note: "outline_enqueued"}},
	})
	require.NoError(t, err)
	require.Len(t, doc.History, 2)
	assert.Equal(t, "evidence_missing", doc.History[0].Note)
	assert.Equal(t, "outline_enqueued", doc.History[1].Note)
	assert.False(t, doc.History[0].At.IsZero())
}

func TestFlagsNormalizedOnEveryWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc, err := store.Write(ctx, testPrefix, Patch{RunID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultFlags(), doc.Flags)

	doc, err = store.Write(ctx, testPrefix, Patch{
		Flags: map[string]bool{FlagViabilityScoring: false, "customFlag": true},
	})
	require.NoError(t, err)
	assert.False(t, doc.Flags[FlagViabilityScoring])
	assert.True(t, doc.Flags["customFlag"])
	assert.Contains(t, doc.Flags, FlagStrictAssembly)
}

func TestFlagsTolerateMalformedDocument(t *testing.T) {
	flags := Flags(Document{})
	assert.Equal(t, DefaultFlags(), flags)

	flags = Flags(Document{Flags: map[string]bool{"extra": true}})
	assert.True(t, flags["extra"])
	assert.Contains(t, flags, FlagViabilityScoring)
}

func TestMergeIsImmutable(t *testing.T) {
	current := Document{
		RunID:   "r1",
		State:   StateQueued,
		Markers: map[string]bool{MarkerOutlineEnqueued: true},
		History: []HistoryEvent{{Phase: "start", Op: "seed"}},
	}
	patch := Patch{
		State:   StateProcessing,
		Markers: map[string]bool{MarkerSectionsEnqueued: true},
	}

	merged := Merge(current, patch, time.Now())
	merged.Markers[MarkerOutlineEnqueued] = false
	merged.History[0].Note = "mutated"

	assert.True(t, current.Markers[MarkerOutlineEnqueued])
	assert.Empty(t, current.History[0].Note)
	assert.Equal(t, StateQueued, current.State)
}

func TestParseState(t *testing.T) {
	assert.Equal(t, StateQueued, ParseState("queued"))
	assert.Equal(t, StateCompleted, ParseState(" Completed "))
	assert.Equal(t, StateUnknown, ParseState(""))
	assert.Equal(t, State("competitor_scored"), ParseState("competitor_scored"))
}

func TestCompletionMarker(t *testing.T) {
	assert.Equal(t, "competitorEnrichCompleted", CompletionMarker("competitorEnrich"))
}
