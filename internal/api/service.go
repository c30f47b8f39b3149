package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"loom/internal/artifact"
	"loom/internal/logging"
	"loom/internal/message"
	"loom/internal/pathing"
	"loom/internal/queue"
	"loom/internal/runstatus"
	"loom/internal/services"
	"loom/internal/workers"
)

// runIndexPath holds the global run listing, outside any run prefix.
const runIndexPath = "runs/index.json"

// CampaignService starts and inspects campaign runs.
type CampaignService struct {
	artifacts artifact.Store
	status    *runstatus.Store
	stages    *queue.Gateway
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

// NewCampaignService wires the run bootstrap path.
func NewCampaignService(artifacts artifact.Store, status *runstatus.Store, stages *queue.Gateway, logger *slog.Logger) *CampaignService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CampaignService{
		artifacts: artifacts,
		status:    status,
		stages:    stages,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logging.NewComponentLogger(logger, "campaign-api"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock fixes the service clock (tests).
func (s *CampaignService) WithClock(now func() time.Time) *CampaignService {
	s.now = now
	return s
}

// Start creates a run: it resolves the storage prefix, persists any seed
// inputs, seeds the status document at Queued, registers the run in the
// index, and enqueues the first stage. The run advances from there entirely
// through queue deliveries.
func (s *CampaignService) Start(ctx context.Context, req StartRequest) (StartResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return StartResponse{}, services.Wrap(services.ErrValidation, "campaign", "start", "invalid request", err)
	}

	now := s.now()
	runID := uuid.NewString()
	prefix := pathing.Resolve(runID, req.UserID, req.Page, now)

	if len(req.Competitors) > 0 {
		doc := workers.CompetitorsDocument{Competitors: req.Competitors}
		if err := s.artifacts.PutJSON(ctx, pathing.ArtifactPath(prefix, workers.ArtifactCompetitors), doc); err != nil {
			return StartResponse{}, fmt.Errorf("seed competitors: %w", err)
		}
	}
	if len(req.Sources) > 0 {
		doc := workers.SourcesDocument{Sources: req.Sources}
		if err := s.artifacts.PutJSON(ctx, pathing.ArtifactPath(prefix, workers.ArtifactSources), doc); err != nil {
			return StartResponse{}, fmt.Errorf("seed sources: %w", err)
		}
	}

	if _, err := s.status.Write(ctx, prefix, runstatus.Patch{
		RunID: runID,
		State: runstatus.StateQueued,
		Flags: req.Flags,
		History: []runstatus.HistoryEvent{{
			Phase: "api",
			Op:    "start",
			Note:  "run created",
		}},
	}); err != nil {
		return StartResponse{}, fmt.Errorf("seed status: %w", err)
	}

	s.appendRunIndex(ctx, RunIndexEntry{
		RunID:     runID,
		Prefix:    prefix,
		Page:      req.Page,
		UserID:    req.UserID,
		CreatedAt: now,
	})

	if err := s.stages.Enqueue(ctx, message.Message{
		Op:     message.OpEnrichCompetitors,
		RunID:  runID,
		Prefix: prefix,
		Page:   req.Page,
	}); err != nil {
		return StartResponse{}, fmt.Errorf("enqueue first stage: %w", err)
	}

	s.logger.Info("run started",
		slog.String(logging.FieldRunID, runID),
		slog.String(logging.FieldPrefix, prefix))
	return StartResponse{RunID: runID, Prefix: prefix}, nil
}

// Status reads the status document for a run prefix.
func (s *CampaignService) Status(ctx context.Context, prefix string) (StatusResponse, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return StatusResponse{}, services.Wrap(services.ErrValidation, "campaign", "status", "prefix is required", nil)
	}
	doc, err := s.status.Read(ctx, prefix)
	if err != nil {
		if errors.Is(err, runstatus.ErrNotFound) {
			return StatusResponse{}, services.Wrap(services.ErrNotFound, "campaign", "status", prefix, nil)
		}
		return StatusResponse{}, err
	}
	return StatusResponse{Status: doc}, nil
}

// StatusByRunID resolves a run id to its prefix through the run index and
// reads its status document.
func (s *CampaignService) StatusByRunID(ctx context.Context, runID string) (StatusResponse, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return StatusResponse{}, services.Wrap(services.ErrValidation, "campaign", "status", "runId is required", nil)
	}
	var index RunIndex
	if err := s.artifacts.GetJSON(ctx, runIndexPath, &index); err != nil && !errors.Is(err, artifact.ErrNotFound) {
		return StatusResponse{}, err
	}
	for _, entry := range index.Runs {
		if entry.RunID == runID {
			return s.Status(ctx, entry.Prefix)
		}
	}
	return StatusResponse{}, services.Wrap(services.ErrNotFound, "campaign", "status", runID, nil)
}

// Runs lists known runs, newest first.
func (s *CampaignService) Runs(ctx context.Context) (RunsResponse, error) {
	var index RunIndex
	if err := s.artifacts.GetJSON(ctx, runIndexPath, &index); err != nil && !errors.Is(err, artifact.ErrNotFound) {
		return RunsResponse{}, err
	}
	for i, j := 0, len(index.Runs)-1; i < j; i, j = i+1, j-1 {
		index.Runs[i], index.Runs[j] = index.Runs[j], index.Runs[i]
	}
	return RunsResponse{Runs: index.Runs}, nil
}

// appendRunIndex is best effort: losing an index entry degrades the listing,
// not the run itself, so a failure here must not fail Start. The index uses
// the same read-merge-write pattern as the status store and shares its
// lost-update caveat under concurrent starts.
func (s *CampaignService) appendRunIndex(ctx context.Context, entry RunIndexEntry) {
	var index RunIndex
	if err := s.artifacts.GetJSON(ctx, runIndexPath, &index); err != nil && !errors.Is(err, artifact.ErrNotFound) {
		s.logger.Warn("run index unreadable, rebuilding", logging.Error(err))
	}
	index.Runs = append(index.Runs, entry)
	if err := s.artifacts.PutJSON(ctx, runIndexPath, index); err != nil {
		s.logger.Warn("failed to update run index", logging.Error(err))
	}
}
