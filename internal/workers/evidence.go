package workers

import (
	"context"
	"fmt"

	"loom/internal/artifact"
	"loom/internal/message"
	"loom/internal/stage"
)

const evidenceSchema = "loom/evidence_log/v1"

// EvidenceLogDocument is the evidence stage output artifact.
type EvidenceLogDocument struct {
	artifact.Envelope
	Entries []EvidenceEntry `json:"entries"`
}

// EvidenceWorker normalizes the declared source hints into the evidence
// corpus the scorers and the router consume.
type EvidenceWorker struct {
	env *stage.Env
}

func NewEvidenceWorker(env *stage.Env) *EvidenceWorker {
	return &EvidenceWorker{env: env}
}

func (w *EvidenceWorker) Op() string { return message.OpBuildEvidence }

func (w *EvidenceWorker) HealthCheck(ctx context.Context) stage.Health {
	if w.env == nil || w.env.Artifacts == nil {
		return stage.Unhealthy("evidence", "artifact store unavailable")
	}
	return stage.Healthy("evidence")
}

func (w *EvidenceWorker) Execute(ctx context.Context, msg message.Message) error {
	ok, err := w.env.Accept(msg, w.Op())
	if !ok {
		return err
	}

	out := EvidenceLogDocument{
		Envelope: artifact.NewEnvelope(evidenceSchema, msg.Prefix, w.env.Clock()),
		Entries:  []EvidenceEntry{},
	}

	var sources SourcesDocument
	w.env.LoadInput(ctx, msg.Prefix, ArtifactSources, &sources, &out.Diagnostics)
	out.Diagnostics.DeclaredCount = len(sources.Sources)

	for _, src := range sources.Sources {
		out.Diagnostics.AttemptedCount++
		if src.Title == "" && src.URL == "" {
			out.Diagnostics.AddSkipReason("source_missing_title_and_url")
			continue
		}
		entry := EvidenceEntry{
			Title:   src.Title,
			Summary: src.Summary,
			URL:     src.URL,
			Tags:    src.Tags,
		}
		if entry.Title == "" {
			entry.Title = src.URL
		}
		out.Entries = append(out.Entries, entry)
		out.Diagnostics.ProducedCount++
	}
	if len(sources.Sources) == 0 {
		out.Diagnostics.AddSkipReason("no_declared_sources")
	}

	if err := w.env.WriteArtifact(ctx, msg.Prefix, ArtifactEvidenceLog, out); err != nil {
		return err
	}
	note := fmt.Sprintf("evidence entries: %d", out.Diagnostics.ProducedCount)
	return w.env.Complete(ctx, msg, "evidence", note)
}
