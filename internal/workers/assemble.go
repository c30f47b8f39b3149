package workers

import (
	"context"
	"fmt"

	"loom/internal/artifact"
	"loom/internal/message"
	"loom/internal/stage"
)

const campaignSchema = "loom/campaign/v1"

// RenderedSection is one assembled section of the final campaign.
type RenderedSection struct {
	Key    string   `json:"key"`
	Title  string   `json:"title"`
	Blocks []string `json:"blocks"`
}

// CampaignDocument is the assemble stage output artifact.
type CampaignDocument struct {
	artifact.Envelope
	Page     string            `json:"page"`
	Complete bool              `json:"complete"`
	Sections []RenderedSection `json:"sections"`
}

// AssembleWorker joins the fan-out. Assemble is enqueued together with the
// section writers, so some section artifacts may not exist yet when it runs;
// it evaluates its own readiness predicate and renders whatever is present,
// reporting each absent section as a skip reason rather than failing or
// blocking on a rendezvous.
type AssembleWorker struct {
	env *stage.Env
}

func NewAssembleWorker(env *stage.Env) *AssembleWorker {
	return &AssembleWorker{env: env}
}

func (w *AssembleWorker) Op() string { return message.OpAssembleCampaign }

func (w *AssembleWorker) HealthCheck(ctx context.Context) stage.Health {
	if w.env == nil || w.env.Artifacts == nil {
		return stage.Unhealthy("assemble", "artifact store unavailable")
	}
	return stage.Healthy("assemble")
}

func (w *AssembleWorker) Execute(ctx context.Context, msg message.Message) error {
	ok, err := w.env.Accept(msg, w.Op())
	if !ok {
		return err
	}

	out := CampaignDocument{
		Envelope: artifact.NewEnvelope(campaignSchema, msg.Prefix, w.env.Clock()),
		Page:     pageOrDefault(msg.Page),
		Sections: []RenderedSection{},
	}

	out.Diagnostics.DeclaredCount = len(SectionKeys)
	for _, key := range SectionKeys {
		out.Diagnostics.AttemptedCount++
		var section SectionDocument
		if !w.env.LoadInput(ctx, msg.Prefix, SectionArtifact(key), &section, &out.Diagnostics) {
			out.Diagnostics.AddSkipReason("missing_section_" + key)
			continue
		}
		out.Sections = append(out.Sections, RenderedSection{
			Key:    section.Key,
			Title:  section.Title,
			Blocks: section.Blocks,
		})
		out.Diagnostics.ProducedCount++
	}
	out.Complete = out.Diagnostics.ProducedCount == len(SectionKeys)

	if err := w.env.WriteArtifact(ctx, msg.Prefix, ArtifactCampaign, out); err != nil {
		return err
	}
	note := fmt.Sprintf("assembled %d/%d sections", out.Diagnostics.ProducedCount, len(SectionKeys))
	return w.env.Complete(ctx, msg, "assemble", note)
}
