package stage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/artifact"
	"loom/internal/message"
	"loom/internal/queue"
	"loom/internal/runstatus"
	"loom/internal/services"
)

func newTestEnv(t *testing.T) (*Env, *queue.Store) {
	t.Helper()
	blobs, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	gateway, err := queue.NewGateway(store, "campaign-control")
	require.NoError(t, err)

	fixed := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	env := &Env{
		Artifacts: blobs,
		Status:    runstatus.NewStoreWithClock(blobs, func() time.Time { return fixed }),
		Control:   gateway,
		Now:       func() time.Time { return fixed },
	}
	return env, store
}

func TestAcceptSkipsOtherOps(t *testing.T) {
	env, _ := newTestEnv(t)

	ok, err := env.Accept(message.Message{Op: message.OpBuildOutline}, message.OpWriteSection)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAcceptRejectsMissingPrefix(t *testing.T) {
	env, _ := newTestEnv(t)

	msg := message.Message{Op: message.OpWriteSection, RunID: "r1"}
	ok, err := env.Accept(msg, message.OpWriteSection)
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestLoadInputRecordsPresence(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	prefix := "runs/p/u/2025/01/05/r1/"

	require.NoError(t, env.Artifacts.PutJSON(ctx, prefix+"outline.json", map[string]string{"k": "v"}))

	var diag artifact.Diagnostics
	var present map[string]string
	assert.True(t, env.LoadInput(ctx, prefix, "outline.json", &present, &diag))
	assert.Equal(t, "v", present["k"])

	var absent map[string]string
	assert.False(t, env.LoadInput(ctx, prefix, "missing.json", &absent, &diag))

	assert.Equal(t, map[string]bool{"outline.json": true, "missing.json": false}, diag.InputsPresent)
}

func TestWriteArtifactRequiresEnvelope(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	prefix := "runs/p/u/2025/01/05/r1/"

	type enveloped struct {
		artifact.Envelope
		Items []string `json:"items"`
	}
	out := enveloped{
		Envelope: artifact.NewEnvelope("loom/test/v1", prefix, env.Clock()),
		Items:    []string{},
	}
	require.NoError(t, env.WriteArtifact(ctx, prefix, "out.json", out))

	var readBack enveloped
	require.NoError(t, env.Artifacts.GetJSON(ctx, prefix+"out.json", &readBack))
	assert.Equal(t, "loom/test/v1", readBack.Schema)

	err := env.WriteArtifact(ctx, prefix, "bad.json", map[string]string{"not": "enveloped"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrValidation)

	exists, err := env.Artifacts.Exists(ctx, prefix+"bad.json")
	require.NoError(t, err)
	assert.False(t, exists, "rejected artifacts are never published")
}

func TestCompleteSetsMarkerAndEnqueuesContinuation(t *testing.T) {
	env, store := newTestEnv(t)
	ctx := context.Background()
	prefix := "runs/p/u/2025/01/05/r1/"

	msg := message.Message{
		Op:     message.OpBuildOutline,
		RunID:  "r1",
		Prefix: prefix,
		Page:   "leadgen",
	}
	require.NoError(t, env.Complete(ctx, msg, "outline", "outline ready"))

	doc, err := env.Status.Read(ctx, prefix)
	require.NoError(t, err)
	assert.True(t, doc.Marker(runstatus.CompletionMarker("outline")))
	require.Len(t, doc.History, 1)
	assert.Equal(t, "outline", doc.History[0].Phase)

	delivery, err := store.Lease(ctx, "campaign-control", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, delivery)
	next, err := message.Decode(delivery.Body)
	require.NoError(t, err)
	assert.Equal(t, message.OpAfterOutline, next.Op)
	assert.Equal(t, "r1", next.RunID)
	assert.Equal(t, prefix, next.Prefix)
	assert.Equal(t, "leadgen", next.Page)
}

func TestCompleteIsRepeatable(t *testing.T) {
	env, store := newTestEnv(t)
	ctx := context.Background()
	prefix := "runs/p/u/2025/01/05/r2/"
	msg := message.Message{Op: message.OpEnrichCompetitors, RunID: "r2", Prefix: prefix}

	require.NoError(t, env.Complete(ctx, msg, "competitorEnrich", ""))
	require.NoError(t, env.Complete(ctx, msg, "competitorEnrich", ""))

	doc, err := env.Status.Read(ctx, prefix)
	require.NoError(t, err)
	assert.True(t, doc.Marker(runstatus.CompletionMarker("competitorEnrich")))

	// Duplicate continuations are harmless; the router's markers absorb them.
	stats, err := store.QueueStats(ctx, "campaign-control")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Ready)
}
