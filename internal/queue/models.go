package queue

import "time"

// MessageState represents the delivery lifecycle of a queued message.
type MessageState string

const (
	StateReady  MessageState = "ready"
	StateLeased MessageState = "leased"
	StateDone   MessageState = "done"
	StateDead   MessageState = "dead"
)

// Delivery is one leased message. Body carries the transport-encoded
// payload exactly as the gateway enqueued it; redeliveries carry the same
// bytes.
type Delivery struct {
	ID             int64
	Queue          string
	Body           []byte
	State          MessageState
	DeliveryCount  int
	EnqueuedAt     time.Time
	UpdatedAt      time.Time
	LeaseExpiresAt *time.Time
	LastError      string
}

// Stats aggregates message counts per state for one queue.
type Stats struct {
	Ready  int
	Leased int
	Done   int
	Dead   int
}

// Total returns the number of messages across all states.
func (s Stats) Total() int {
	return s.Ready + s.Leased + s.Done + s.Dead
}
