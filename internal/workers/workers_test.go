package workers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"loom/internal/artifact"
	"loom/internal/queue"
	"loom/internal/runstatus"
	"loom/internal/stage"
)

const testPrefix = "runs/leadgen/acme/2025/01/05/r1/"

func newWorkerEnv(t *testing.T) (*stage.Env, *queue.Store) {
	t.Helper()
	blobs, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	gateway, err := queue.NewGateway(store, "campaign-control")
	require.NoError(t, err)

	fixed := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	env := &stage.Env{
		Artifacts: blobs,
		Status:    runstatus.NewStoreWithClock(blobs, func() time.Time { return fixed }),
		Control:   gateway,
		Now:       func() time.Time { return fixed },
	}
	return env, store
}

func putArtifact(t *testing.T, env *stage.Env, name string, value any) {
	t.Helper()
	require.NoError(t, env.Artifacts.PutJSON(context.Background(), testPrefix+name, value))
}

func getArtifact(t *testing.T, env *stage.Env, name string, dest any) {
	t.Helper()
	require.NoError(t, env.Artifacts.GetJSON(context.Background(), testPrefix+name, dest))
}
