package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"loom/internal/config"
)

// Gateway enqueues messages to one named queue. The queue name is validated
// at construction so a misconfigured name fails at startup, not on the hot
// path; the underlying store is checked on first use so a missing
// connection surfaces as a configuration error rather than a generic I/O
// failure.
type Gateway struct {
	store *Store
	queue string
}

// NewGateway binds a gateway to a named queue on the given store.
func NewGateway(store *Store, queueName string) (*Gateway, error) {
	if err := config.ValidateQueueName(queueName); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("queue gateway: store is not configured")
	}
	return &Gateway{store: store, queue: queueName}, nil
}

// Queue returns the queue name this gateway is bound to.
func (g *Gateway) Queue() string {
	return g.queue
}

// Enqueue serializes and transport-encodes a payload, ensures the queue
// exists, and appends the message. Strings pass through unchanged; nil
// serializes to the literal "null" so an absent payload stays
// distinguishable from an empty object; everything else is JSON-encoded.
func (g *Gateway) Enqueue(ctx context.Context, payload any) error {
	serialized, err := SerializePayload(payload)
	if err != nil {
		return err
	}
	body := base64.StdEncoding.EncodeToString([]byte(serialized))

	if err := g.store.EnsureQueue(ctx, g.queue); err != nil {
		return err
	}
	if _, err := g.store.Enqueue(ctx, g.queue, []byte(body)); err != nil {
		return err
	}
	return nil
}

// SerializePayload converts an arbitrary payload to its wire string.
func SerializePayload(payload any) (string, error) {
	switch v := payload.(type) {
	case nil:
		return "null", nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("serialize payload: %w", err)
		}
		return string(data), nil
	}
}
