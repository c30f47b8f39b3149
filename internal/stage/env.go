package stage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"loom/internal/artifact"
	"loom/internal/logging"
	"loom/internal/message"
	"loom/internal/pathing"
	"loom/internal/queue"
	"loom/internal/runstatus"
	"loom/internal/services"
)

// Env bundles the collaborators every worker needs. Workers embed an Env and
// implement only their compute step; decode, input loading, envelope writes,
// status updates, and the continuation enqueue all go through the shared
// helpers so each stage observes the same failure discipline.
type Env struct {
	Artifacts artifact.Store
	Status    *runstatus.Store
	Control   *queue.Gateway
	Logger    *slog.Logger
	Now       func() time.Time
}

// Clock returns the current stage time, defaulting to UTC wall clock.
func (e *Env) Clock() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.NewNop()
}

// log returns the env logger carrying any run, stage, and queue fields the
// workflow manager attached to the context.
func (e *Env) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, e.logger())
}

// Accept checks an incoming message against the worker's op. A mismatched op
// returns (false, nil) so workers sharing a queue skip each other's traffic
// without failing the delivery. A matching op with missing required fields is
// a validation error; without a prefix there is no way to report status, so
// the delivery must go back to the queue's retry and poison policy.
func (e *Env) Accept(msg message.Message, op string) (bool, error) {
	if msg.Op != op {
		e.logger().Debug("skipping message for another stage",
			slog.String(logging.FieldOp, msg.Op),
			slog.String("expected_op", op))
		return false, nil
	}
	if err := msg.Validate(); err != nil {
		return false, services.Wrap(services.ErrValidation, op, "validate message", "", err)
	}
	return true, nil
}

// LoadInput reads an optional input artifact under prefix into dest and
// records its presence in diag. Missing or unparseable inputs are diagnostics
// facts, not failures; dest keeps its zero value and the worker computes from
// whatever is available.
func (e *Env) LoadInput(ctx context.Context, prefix, name string, dest any, diag *artifact.Diagnostics) bool {
	err := e.Artifacts.GetJSON(ctx, pathing.ArtifactPath(prefix, name), dest)
	if err != nil {
		if !errors.Is(err, artifact.ErrNotFound) {
			e.log(ctx).Warn("input artifact unreadable, treating as absent",
				slog.String(logging.FieldPrefix, prefix),
				slog.String("artifact", name),
				logging.Error(err))
		}
		diag.SetInputPresent(name, false)
		return false
	}
	diag.SetInputPresent(name, true)
	return true
}

// WriteArtifact persists a stage output under prefix. Output is written
// unconditionally, zero results included; consumers read the diagnostics
// block to tell an empty run from a run that never happened. The envelope is
// schema-checked before publishing; a malformed envelope is a worker bug and
// fails as non-retryable.
func (e *Env) WriteArtifact(ctx context.Context, prefix, name string, value any) error {
	if err := artifact.ValidateEnvelopeValue(value); err != nil {
		return services.Wrap(services.ErrValidation, name, "validate artifact", "", err)
	}
	if err := e.Artifacts.PutJSON(ctx, pathing.ArtifactPath(prefix, name), value); err != nil {
		return services.Wrap(services.ErrTransient, name, "write artifact", "", err)
	}
	return nil
}

// Complete records a finished stage and hands control back to the router. It
// sets the stage's completion marker, appends a history event, and enqueues
// the continuation op for msg.Op on the control queue. Failures here are
// transient: the artifact is already written, and a redelivery re-running the
// stage overwrites it with identical bytes before retrying this step.
func (e *Env) Complete(ctx context.Context, msg message.Message, stageName, note string) error {
	patch := runstatus.Patch{
		RunID:   msg.RunID,
		State:   runstatus.State(runstatus.CompletionMarker(stageName)),
		Markers: map[string]bool{runstatus.CompletionMarker(stageName): true},
		History: []runstatus.HistoryEvent{{
			Phase: stageName,
			Op:    msg.Op,
			Note:  note,
		}},
	}
	if _, err := e.Status.Write(ctx, msg.Prefix, patch); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "update status", "", err)
	}

	continuation := message.ContinuationOp(msg.Op)
	if continuation == "" {
		e.log(ctx).Warn("no continuation op for stage, pipeline will not advance",
			slog.String(logging.FieldOp, msg.Op),
			slog.String(logging.FieldRunID, msg.RunID))
		return nil
	}
	next := message.Message{
		Op:      continuation,
		RunID:   msg.RunID,
		Prefix:  msg.Prefix,
		Page:    msg.Page,
		Section: msg.Section,
	}
	if err := e.Control.Enqueue(ctx, next); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "enqueue continuation", continuation, err)
	}
	e.log(ctx).Info("stage completed",
		slog.String(logging.FieldStage, stageName),
		slog.String(logging.FieldRunID, msg.RunID),
		slog.String("continuation", continuation))
	return nil
}
