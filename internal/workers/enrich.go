package workers

import (
	"context"
	"fmt"
	"strings"

	"loom/internal/artifact"
	"loom/internal/message"
	"loom/internal/stage"
	"loom/internal/textutil"
)

const enrichSchema = "loom/competitors_enriched/v1"

// EnrichedDocument is the enrich stage output artifact.
type EnrichedDocument struct {
	artifact.Envelope
	Competitors []EnrichedCompetitor `json:"competitors"`
}

// EnrichWorker normalizes declared competitors into the enriched records the
// scoring stage consumes. Zero declared competitors is a diagnostics fact,
// not a failure.
type EnrichWorker struct {
	env *stage.Env
}

func NewEnrichWorker(env *stage.Env) *EnrichWorker {
	return &EnrichWorker{env: env}
}

func (w *EnrichWorker) Op() string { return message.OpEnrichCompetitors }

func (w *EnrichWorker) HealthCheck(ctx context.Context) stage.Health {
	if w.env == nil || w.env.Artifacts == nil {
		return stage.Unhealthy("competitorEnrich", "artifact store unavailable")
	}
	return stage.Healthy("competitorEnrich")
}

func (w *EnrichWorker) Execute(ctx context.Context, msg message.Message) error {
	ok, err := w.env.Accept(msg, w.Op())
	if !ok {
		return err
	}

	out := EnrichedDocument{
		Envelope:    artifact.NewEnvelope(enrichSchema, msg.Prefix, w.env.Clock()),
		Competitors: []EnrichedCompetitor{},
	}

	var declared CompetitorsDocument
	w.env.LoadInput(ctx, msg.Prefix, ArtifactCompetitors, &declared, &out.Diagnostics)
	out.Diagnostics.DeclaredCount = len(declared.Competitors)

	for _, comp := range declared.Competitors {
		out.Diagnostics.AttemptedCount++
		name := strings.TrimSpace(comp.Name)
		if name == "" {
			out.Diagnostics.AddSkipReason("competitor_missing_name")
			continue
		}
		slug := strings.TrimSpace(comp.Slug)
		if slug == "" {
			slug = textutil.Slugify(name)
		}
		claims := make([]string, 0, len(comp.Claims))
		for _, claim := range comp.Claims {
			if claim = strings.TrimSpace(claim); claim != "" {
				claims = append(claims, claim)
			}
		}
		out.Competitors = append(out.Competitors, EnrichedCompetitor{
			Name:      name,
			Slug:      slug,
			URL:       comp.URL,
			Claims:    claims,
			ClaimText: strings.ToLower(strings.Join(claims, " ")),
		})
		out.Diagnostics.ProducedCount++
	}
	if len(declared.Competitors) == 0 {
		out.Diagnostics.AddSkipReason("no_declared_competitors")
	}

	if err := w.env.WriteArtifact(ctx, msg.Prefix, ArtifactEnriched, out); err != nil {
		return err
	}
	note := fmt.Sprintf("competitors enriched: %d", out.Diagnostics.ProducedCount)
	return w.env.Complete(ctx, msg, "competitorEnrich", note)
}
