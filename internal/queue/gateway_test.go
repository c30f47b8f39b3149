package queue

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/message"
)

func TestNewGatewayValidatesQueueName(t *testing.T) {
	store := openTestStore(t)

	_, err := NewGateway(store, "Bad Name")
	assert.Error(t, err)
	_, err = NewGateway(store, "ab")
	assert.Error(t, err)
	_, err = NewGateway(store, "double--hyphen")
	assert.Error(t, err)

	gw, err := NewGateway(store, "campaign-control")
	require.NoError(t, err)
	assert.Equal(t, "campaign-control", gw.Queue())
}

func TestNewGatewayRequiresStore(t *testing.T) {
	_, err := NewGateway(nil, "campaign-control")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestEnqueueRoundTripsThroughDecode(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	gw, err := NewGateway(store, "campaign-control")
	require.NoError(t, err)

	msg := message.Message{
		Op:     message.OpAfterOutline,
		RunID:  "r9",
		Prefix: "runs/p/u/2025/01/05/r9/",
		Page:   "leadgen",
	}
	require.NoError(t, gw.Enqueue(ctx, msg))

	delivery, err := store.Lease(ctx, "campaign-control", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, delivery)

	decoded, err := message.Decode(delivery.Body)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestEnqueueStringPayloadPassesThrough(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	gw, err := NewGateway(store, "campaign-control")
	require.NoError(t, err)

	raw := `{"op":"afterevidence","runId":"r1","prefix":"runs/p/u/2025/01/05/r1/"}`
	require.NoError(t, gw.Enqueue(ctx, raw))

	delivery, err := store.Lease(ctx, "campaign-control", time.Minute)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(string(delivery.Body))
	require.NoError(t, err)
	assert.Equal(t, raw, string(decoded))

	msg, err := message.Decode(delivery.Body)
	require.NoError(t, err)
	assert.Equal(t, "afterevidence", msg.Op)
}

func TestEnqueueNilPayloadIsLiteralNull(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	gw, err := NewGateway(store, "campaign-control")
	require.NoError(t, err)

	require.NoError(t, gw.Enqueue(ctx, nil))

	delivery, err := store.Lease(ctx, "campaign-control", time.Minute)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(string(delivery.Body))
	require.NoError(t, err)
	assert.Equal(t, "null", string(decoded), "no payload must stay distinguishable from an empty object")

	_, err = message.Decode(delivery.Body)
	assert.ErrorIs(t, err, message.ErrEmptyMessage)
}

func TestSerializePayload(t *testing.T) {
	s, err := SerializePayload(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", s)

	s, err = SerializePayload("already-a-string")
	require.NoError(t, err)
	assert.Equal(t, "already-a-string", s)

	s, err = SerializePayload(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, s)
}
