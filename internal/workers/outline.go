package workers

import (
	"context"
	"fmt"

	"loom/internal/artifact"
	"loom/internal/message"
	"loom/internal/stage"
)

const outlineSchema = "loom/outline/v1"

// SectionKeys is the fixed set of campaign sections. The router fans out one
// section-writer message per key and the assemble stage expects one artifact
// per key; changing this list changes the shape of every campaign.
var SectionKeys = []string{
	"executive_summary",
	"market_landscape",
	"competitive_positioning",
	"offering",
	"proof_points",
	"call_to_action",
}

var sectionTitles = map[string]string{
	"executive_summary":       "Executive Summary",
	"market_landscape":        "Market Landscape",
	"competitive_positioning": "Competitive Positioning",
	"offering":                "Offering",
	"proof_points":            "Proof Points",
	"call_to_action":          "Call to Action",
}

// OutlineSection is the plan for one campaign section.
type OutlineSection struct {
	Key           string   `json:"key"`
	Title         string   `json:"title"`
	Goal          string   `json:"goal"`
	TalkingPoints []string `json:"talking_points"`
}

// OutlineDocument is the outline stage output artifact.
type OutlineDocument struct {
	artifact.Envelope
	Sections []OutlineSection `json:"sections"`
}

// OutlineWorker plans the campaign's sections from the strategy and the
// competitor scores. The section set is fixed; inputs only shape the talking
// points.
type OutlineWorker struct {
	env *stage.Env
}

func NewOutlineWorker(env *stage.Env) *OutlineWorker {
	return &OutlineWorker{env: env}
}

func (w *OutlineWorker) Op() string { return message.OpBuildOutline }

func (w *OutlineWorker) HealthCheck(ctx context.Context) stage.Health {
	if w.env == nil || w.env.Artifacts == nil {
		return stage.Unhealthy("outline", "artifact store unavailable")
	}
	return stage.Healthy("outline")
}

func (w *OutlineWorker) Execute(ctx context.Context, msg message.Message) error {
	ok, err := w.env.Accept(msg, w.Op())
	if !ok {
		return err
	}

	out := OutlineDocument{
		Envelope: artifact.NewEnvelope(outlineSchema, msg.Prefix, w.env.Clock()),
		Sections: []OutlineSection{},
	}

	var strategy StrategyDocument
	w.env.LoadInput(ctx, msg.Prefix, ArtifactStrategy, &strategy, &out.Diagnostics)
	var scores ScoresDocument
	w.env.LoadInput(ctx, msg.Prefix, ArtifactScores, &scores, &out.Diagnostics)

	out.Diagnostics.DeclaredCount = len(SectionKeys)
	for _, key := range SectionKeys {
		out.Diagnostics.AttemptedCount++
		out.Sections = append(out.Sections, planSection(key, msg.Page, strategy, scores))
		out.Diagnostics.ProducedCount++
	}
	if strategy.TextBlob() == "" {
		out.Diagnostics.AddSkipReason("no_strategy_text")
	}

	if err := w.env.WriteArtifact(ctx, msg.Prefix, ArtifactOutline, out); err != nil {
		return err
	}
	note := fmt.Sprintf("sections planned: %d", len(out.Sections))
	return w.env.Complete(ctx, msg, "outline", note)
}

func planSection(key, page string, strategy StrategyDocument, scores ScoresDocument) OutlineSection {
	section := OutlineSection{
		Key:           key,
		Title:         sectionTitles[key],
		Goal:          fmt.Sprintf("Cover %s for the %s campaign", sectionTitles[key], pageOrDefault(page)),
		TalkingPoints: []string{},
	}
	switch key {
	case "executive_summary":
		if strategy.Positioning != "" {
			section.TalkingPoints = append(section.TalkingPoints, strategy.Positioning)
		}
	case "market_landscape":
		if strategy.Narrative != "" {
			section.TalkingPoints = append(section.TalkingPoints, strategy.Narrative)
		}
	case "competitive_positioning":
		for _, score := range scores.Scores {
			point := fmt.Sprintf("%s: coverage %s, differentiation %s",
				score.Name, score.CoverageOverlap, score.DifferentiationClarity)
			section.TalkingPoints = append(section.TalkingPoints, point)
		}
	case "offering":
		section.TalkingPoints = append(section.TalkingPoints, strategy.Advantages...)
	case "proof_points":
		for _, score := range scores.Scores {
			if score.ProofStrength == ScoreStrong || score.ProofStrength == ScoreModerate {
				section.TalkingPoints = append(section.TalkingPoints,
					fmt.Sprintf("Evidence available against %s", score.Name))
			}
		}
	case "call_to_action":
		section.TalkingPoints = append(section.TalkingPoints, strategy.Differentiators...)
	}
	return section
}

func pageOrDefault(page string) string {
	if page == "" {
		return "campaign"
	}
	return page
}
