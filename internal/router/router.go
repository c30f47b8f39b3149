package router

import (
	"context"
	"fmt"
	"log/slog"

	"loom/internal/artifact"
	"loom/internal/logging"
	"loom/internal/message"
	"loom/internal/pathing"
	"loom/internal/queue"
	"loom/internal/runstatus"
	"loom/internal/workers"
)

// Router advances the pipeline. It consumes control ops, consults the run's
// markers to decide idempotently whether a stage still needs enqueueing, and
// fans work out to the stage queue. Markers are the only ordering mechanism:
// the transport guarantees neither order nor single delivery, so every
// transition must be a safe no-op on replay.
type Router struct {
	artifacts artifact.Store
	status    *runstatus.Store
	stages    *queue.Gateway
	logger    *slog.Logger
}

// New constructs a router that enqueues stage work through the given gateway.
func New(artifacts artifact.Store, status *runstatus.Store, stages *queue.Gateway, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{
		artifacts: artifacts,
		status:    status,
		stages:    stages,
		logger:    logging.NewComponentLogger(logger, "router"),
	}
}

// Route processes one control message. It never returns an error: the
// delivery must always be acked, because re-delivering a malformed or
// half-processed control message would loop forever. Failures are recorded
// as a best-effort error history event instead, and that append is itself
// allowed to fail silently.
func (r *Router) Route(ctx context.Context, msg message.Message) {
	log := r.logger.With(
		slog.String(logging.FieldOp, msg.Op),
		slog.String(logging.FieldRunID, msg.RunID))

	if err := msg.Validate(); err != nil {
		log.Warn("dropping unroutable control message", logging.Error(err))
		return
	}
	if err := r.route(ctx, msg, log); err != nil {
		log.Error("routing failed, delivery acked anyway", logging.Error(err))
		r.recordError(ctx, msg, err)
	}
}

func (r *Router) route(ctx context.Context, msg message.Message, log *slog.Logger) error {
	switch msg.Op {
	case message.OpAfterEvidence:
		return r.afterEvidence(ctx, msg, log)
	case message.OpAfterOutline:
		return r.afterOutline(ctx, msg, log)
	case message.OpAfterCompetitorEnrich:
		return r.afterCompetitorEnrich(ctx, msg)
	case message.OpAfterCompetitorScored:
		return r.afterCompetitorScored(ctx, msg)
	case message.OpAfterSection:
		return r.recordPhase(ctx, msg, "section", fmt.Sprintf("section completed: %s", msg.Section))
	case message.OpAfterViability:
		return r.recordPhase(ctx, msg, "viability", "viability scoring completed")
	case message.OpAfterAssemble:
		return r.afterAssemble(ctx, msg)
	default:
		// Never re-enqueue an op we do not understand; that is how loops
		// start.
		log.Warn("dropping unrecognized control op")
		return nil
	}
}

// afterEvidence enqueues the outline stage once evidence exists. With no
// evidence yet, the run parks behind waitingForEvidence until the evidence
// stage re-emits afterevidence.
func (r *Router) afterEvidence(ctx context.Context, msg message.Message, log *slog.Logger) error {
	doc := r.readStatus(ctx, msg)
	if doc.Marker(runstatus.MarkerOutlineEnqueued) {
		log.Info("outline already enqueued, ignoring replay")
		return nil
	}

	present, err := r.evidencePresent(ctx, msg.Prefix)
	if err != nil {
		return err
	}
	if !present {
		_, err := r.status.Write(ctx, msg.Prefix, runstatus.Patch{
			RunID:   msg.RunID,
			Markers: map[string]bool{runstatus.MarkerWaitingForEvidence: true},
			History: []runstatus.HistoryEvent{{
				Phase: "router",
				Op:    msg.Op,
				Note:  "evidence_missing",
			}},
		})
		return err
	}

	if err := r.stages.Enqueue(ctx, message.Message{
		Op:     message.OpBuildOutline,
		RunID:  msg.RunID,
		Prefix: msg.Prefix,
		Page:   msg.Page,
	}); err != nil {
		return fmt.Errorf("enqueue outline: %w", err)
	}
	_, err = r.status.Write(ctx, msg.Prefix, runstatus.Patch{
		RunID:   msg.RunID,
		Markers: map[string]bool{runstatus.MarkerOutlineEnqueued: true},
		History: []runstatus.HistoryEvent{{
			Phase: "router",
			Op:    msg.Op,
			Note:  "outline enqueued",
		}},
	})
	return err
}

// afterOutline fans out the section writers and the assemble stage together.
// There is no join barrier: assemble tolerates missing sections itself.
func (r *Router) afterOutline(ctx context.Context, msg message.Message, log *slog.Logger) error {
	doc := r.readStatus(ctx, msg)
	patch := runstatus.Patch{RunID: msg.RunID, Markers: map[string]bool{}}

	if !doc.Marker(runstatus.MarkerSectionsEnqueued) {
		for _, key := range workers.SectionKeys {
			if err := r.stages.Enqueue(ctx, message.Message{
				Op:      message.OpWriteSection,
				RunID:   msg.RunID,
				Prefix:  msg.Prefix,
				Page:    msg.Page,
				Section: key,
			}); err != nil {
				return fmt.Errorf("enqueue section %s: %w", key, err)
			}
		}
		patch.Markers[runstatus.MarkerSectionsEnqueued] = true
		patch.History = append(patch.History, runstatus.HistoryEvent{
			Phase: "router",
			Op:    msg.Op,
			Note:  fmt.Sprintf("sections enqueued: %d", len(workers.SectionKeys)),
		})
	} else {
		log.Info("sections already enqueued, ignoring replay")
	}

	if !doc.Marker(runstatus.MarkerAssembleEnqueued) {
		if err := r.stages.Enqueue(ctx, message.Message{
			Op:     message.OpAssembleCampaign,
			RunID:  msg.RunID,
			Prefix: msg.Prefix,
			Page:   msg.Page,
		}); err != nil {
			return fmt.Errorf("enqueue assemble: %w", err)
		}
		patch.Markers[runstatus.MarkerAssembleEnqueued] = true
		patch.History = append(patch.History, runstatus.HistoryEvent{
			Phase: "router",
			Op:    msg.Op,
			Note:  "assemble enqueued",
		})
	} else {
		log.Info("assemble already enqueued, ignoring replay")
	}

	if len(patch.Markers) == 0 {
		return nil
	}
	_, err := r.status.Write(ctx, msg.Prefix, patch)
	return err
}

func (r *Router) afterCompetitorEnrich(ctx context.Context, msg message.Message) error {
	if err := r.stages.Enqueue(ctx, message.Message{
		Op:     message.OpScoreCompetitors,
		RunID:  msg.RunID,
		Prefix: msg.Prefix,
		Page:   msg.Page,
	}); err != nil {
		return fmt.Errorf("enqueue scoring: %w", err)
	}
	_, err := r.status.Write(ctx, msg.Prefix, runstatus.Patch{
		RunID: msg.RunID,
		State: runstatus.State("competitor_enrich_completed"),
		History: []runstatus.HistoryEvent{{
			Phase: "router",
			Op:    msg.Op,
			Note:  "scoring enqueued",
		}},
	})
	return err
}

// afterCompetitorScored moves the run into evidence gathering, with the
// viability scorer alongside when the run's flag enables it.
func (r *Router) afterCompetitorScored(ctx context.Context, msg message.Message) error {
	doc := r.readStatus(ctx, msg)

	if err := r.stages.Enqueue(ctx, message.Message{
		Op:     message.OpBuildEvidence,
		RunID:  msg.RunID,
		Prefix: msg.Prefix,
		Page:   msg.Page,
	}); err != nil {
		return fmt.Errorf("enqueue evidence: %w", err)
	}
	note := "evidence enqueued"
	if runstatus.Flags(doc)[runstatus.FlagViabilityScoring] {
		if err := r.stages.Enqueue(ctx, message.Message{
			Op:     message.OpScoreViability,
			RunID:  msg.RunID,
			Prefix: msg.Prefix,
			Page:   msg.Page,
		}); err != nil {
			return fmt.Errorf("enqueue viability: %w", err)
		}
		note = "evidence and viability enqueued"
	}
	_, err := r.status.Write(ctx, msg.Prefix, runstatus.Patch{
		RunID: msg.RunID,
		State: runstatus.State("competitor_scored"),
		History: []runstatus.HistoryEvent{{
			Phase: "router",
			Op:    msg.Op,
			Note:  note,
		}},
	})
	return err
}

func (r *Router) afterAssemble(ctx context.Context, msg message.Message) error {
	_, err := r.status.Write(ctx, msg.Prefix, runstatus.Patch{
		RunID: msg.RunID,
		State: runstatus.StateCompleted,
		History: []runstatus.HistoryEvent{{
			Phase: "router",
			Op:    msg.Op,
			Note:  "campaign assembled",
		}},
	})
	return err
}

func (r *Router) recordPhase(ctx context.Context, msg message.Message, phase, note string) error {
	_, err := r.status.Write(ctx, msg.Prefix, runstatus.Patch{
		RunID: msg.RunID,
		History: []runstatus.HistoryEvent{{
			Phase: phase,
			Op:    msg.Op,
			Note:  note,
		}},
	})
	return err
}

// readStatus tolerates a missing document; an absent status behaves like one
// with no markers set.
func (r *Router) readStatus(ctx context.Context, msg message.Message) runstatus.Document {
	doc, err := r.status.Read(ctx, msg.Prefix)
	if err != nil {
		return runstatus.Document{RunID: msg.RunID}
	}
	return doc
}

func (r *Router) evidencePresent(ctx context.Context, prefix string) (bool, error) {
	for _, name := range []string{workers.ArtifactEvidence, workers.ArtifactEvidenceLog} {
		exists, err := r.artifacts.Exists(ctx, pathing.ArtifactPath(prefix, name))
		if err != nil {
			return false, fmt.Errorf("check evidence artifact %s: %w", name, err)
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// recordError appends a failure event to the run's history. Best effort: a
// secondary failure here must not escape, or error reporting would crash the
// routing loop it reports on.
func (r *Router) recordError(ctx context.Context, msg message.Message, routeErr error) {
	_, err := r.status.Write(ctx, msg.Prefix, runstatus.Patch{
		RunID: msg.RunID,
		History: []runstatus.HistoryEvent{{
			Phase: "router",
			Op:    msg.Op,
			Error: routeErr.Error(),
		}},
	})
	if err != nil {
		r.logger.Warn("failed to record routing error",
			slog.String(logging.FieldRunID, msg.RunID),
			logging.Error(err))
	}
}
