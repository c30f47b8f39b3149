package workers

import (
	"context"
	"fmt"

	"loom/internal/artifact"
	"loom/internal/message"
	"loom/internal/stage"
)

const viabilitySchema = "loom/viability_scores/v1"

// Letter grades, A best. "Worst" comparisons rely on byte order.
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
)

// UI tabs that viability dimensions and warnings roll up into.
const (
	TabExecutiveSummary = "Executive summary"
	TabGoToMarket       = "Go-to-market"
	TabOffering         = "Offering"
	TabSalesEnablement  = "Sales enablement"
	TabProofPoints      = "Proof points"
)

// SeverityBlock downgrades the overall grade by one letter.
const SeverityBlock = "block"

type viabilityDimension struct {
	Key string
	Tab string
}

// The nine scored dimensions and their tab affinity, in report order.
var viabilityDimensions = []viabilityDimension{
	{Key: "problem_clarity", Tab: TabExecutiveSummary},
	{Key: "value_clarity", Tab: TabOffering},
	{Key: "differentiation", Tab: TabOffering},
	{Key: "field_of_play", Tab: TabGoToMarket},
	{Key: "right_to_play", Tab: TabExecutiveSummary},
	{Key: "evidence_strength", Tab: TabProofPoints},
	{Key: "gtm_clarity", Tab: TabGoToMarket},
	{Key: "cohort_size", Tab: TabGoToMarket},
	{Key: "execution_readiness", Tab: TabSalesEnablement},
}

// ViabilityWarning flags a concern raised while producing a sub-score.
type ViabilityWarning struct {
	Dimension string `json:"dimension"`
	Severity  string `json:"severity"`
	Message   string `json:"message,omitempty"`
	Tab       string `json:"tab,omitempty"`
}

// ViabilityInputsDocument carries the nine 0-100 sub-scores and any warnings
// produced upstream.
type ViabilityInputsDocument struct {
	Scores   map[string]float64 `json:"scores"`
	Warnings []ViabilityWarning `json:"warnings,omitempty"`
}

// ViabilityDocument is the viability stage output artifact.
type ViabilityDocument struct {
	artifact.Envelope
	Grades    map[string]string  `json:"grades"`
	TabGrades map[string]string  `json:"tab_grades"`
	Overall   string             `json:"overall"`
	Warnings  []ViabilityWarning `json:"warnings"`
}

// ViabilityWorker grades the nine viability sub-scores into letters, rolls
// them up per UI tab, and derives an overall grade.
type ViabilityWorker struct {
	env *stage.Env
}

func NewViabilityWorker(env *stage.Env) *ViabilityWorker {
	return &ViabilityWorker{env: env}
}

func (w *ViabilityWorker) Op() string { return message.OpScoreViability }

func (w *ViabilityWorker) HealthCheck(ctx context.Context) stage.Health {
	if w.env == nil || w.env.Artifacts == nil {
		return stage.Unhealthy("viability", "artifact store unavailable")
	}
	return stage.Healthy("viability")
}

func (w *ViabilityWorker) Execute(ctx context.Context, msg message.Message) error {
	ok, err := w.env.Accept(msg, w.Op())
	if !ok {
		return err
	}

	out := ViabilityDocument{
		Envelope:  artifact.NewEnvelope(viabilitySchema, msg.Prefix, w.env.Clock()),
		Grades:    map[string]string{},
		TabGrades: map[string]string{},
		Warnings:  []ViabilityWarning{},
	}

	var inputs ViabilityInputsDocument
	w.env.LoadInput(ctx, msg.Prefix, ArtifactViabilityIn, &inputs, &out.Diagnostics)
	out.Warnings = append(out.Warnings, inputs.Warnings...)

	out.Diagnostics.DeclaredCount = len(viabilityDimensions)
	for _, dim := range viabilityDimensions {
		out.Diagnostics.AttemptedCount++
		score, present := inputs.Scores[dim.Key]
		if !present {
			out.Diagnostics.AddSkipReason("missing_score_" + dim.Key)
		}
		out.Grades[dim.Key] = gradeScore(score)
		out.Diagnostics.ProducedCount++
	}

	out.TabGrades = tabGrades(out.Grades)
	out.Overall = overallGrade(out.Grades, out.Warnings)

	if err := w.env.WriteArtifact(ctx, msg.Prefix, ArtifactViability, out); err != nil {
		return err
	}
	note := fmt.Sprintf("viability grade: %s", out.Overall)
	return w.env.Complete(ctx, msg, "viability", note)
}

func gradeScore(score float64) string {
	switch {
	case score >= 75:
		return GradeA
	case score >= 50:
		return GradeB
	default:
		return GradeC
	}
}

func gradeValue(grade string) float64 {
	switch grade {
	case GradeA:
		return 3
	case GradeB:
		return 2
	default:
		return 1
	}
}

// overallGrade averages the numeric grade equivalents and downgrades one
// letter when any block-severity warning is present.
func overallGrade(grades map[string]string, warnings []ViabilityWarning) string {
	if len(grades) == 0 {
		return GradeC
	}
	sum := 0.0
	for _, dim := range viabilityDimensions {
		sum += gradeValue(grades[dim.Key])
	}
	avg := sum / float64(len(viabilityDimensions))

	overall := GradeC
	switch {
	case avg >= 2.5:
		overall = GradeA
	case avg >= 1.7:
		overall = GradeB
	}
	for _, warning := range warnings {
		if warning.Severity == SeverityBlock {
			return downgrade(overall)
		}
	}
	return overall
}

func downgrade(grade string) string {
	switch grade {
	case GradeA:
		return GradeB
	default:
		return GradeC
	}
}

// tabGrades assigns each tab the worst grade among its dimensions.
func tabGrades(grades map[string]string) map[string]string {
	tabs := map[string]string{}
	for _, dim := range viabilityDimensions {
		grade := grades[dim.Key]
		if current, ok := tabs[dim.Tab]; !ok || grade > current {
			tabs[dim.Tab] = grade
		}
	}
	return tabs
}
