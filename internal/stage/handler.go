package stage

import (
	"context"

	"loom/internal/message"
)

// Handler describes the contract the workflow manager needs from each stage.
// Handlers sharing a queue are dispatched by Op; Execute must treat an op
// mismatch as a no-op rather than an error.
type Handler interface {
	Op() string
	Execute(context.Context, message.Message) error
	HealthCheck(context.Context) Health
}
