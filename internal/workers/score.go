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

const scoresSchema = "loom/competitor_scores/v1"

// Score labels. Each dimension has its own ladder; "unknown" and "none"
// always come with a constraint explaining the missing input.
const (
	ScoreHigh     = "high"
	ScoreMedium   = "medium"
	ScoreLow      = "low"
	ScoreUnknown  = "unknown"
	ScoreClear    = "clear"
	ScorePartial  = "partial"
	ScoreWeak     = "weak"
	ScoreStrong   = "strong"
	ScoreModerate = "moderate"
	ScoreNone     = "none"
)

// CompetitorScore is the per-competitor result of the scoring stage.
type CompetitorScore struct {
	Name                   string   `json:"name"`
	Slug                   string   `json:"slug"`
	CoverageOverlap        string   `json:"coverage_overlap"`
	DifferentiationClarity string   `json:"differentiation_clarity"`
	ProofStrength          string   `json:"proof_strength"`
	BuyerRelevance         string   `json:"buyer_relevance"`
	Constraints            []string `json:"constraints"`
}

// ScoresDocument is the scoring stage output artifact.
type ScoresDocument struct {
	artifact.Envelope
	Scores []CompetitorScore `json:"scores"`
}

// ScoreWorker computes four rule-based scores per competitor from the
// enriched competitor list, the campaign strategy, the evidence corpus, and
// the buyer logic. Every dimension degrades to "unknown" or "none" with a
// constraint note instead of failing when an input is missing, and one
// competitor's failure never aborts the batch.
type ScoreWorker struct {
	env *stage.Env
}

func NewScoreWorker(env *stage.Env) *ScoreWorker {
	return &ScoreWorker{env: env}
}

func (w *ScoreWorker) Op() string { return message.OpScoreCompetitors }

func (w *ScoreWorker) HealthCheck(ctx context.Context) stage.Health {
	if w.env == nil || w.env.Artifacts == nil {
		return stage.Unhealthy("competitorScore", "artifact store unavailable")
	}
	return stage.Healthy("competitorScore")
}

func (w *ScoreWorker) Execute(ctx context.Context, msg message.Message) error {
	ok, err := w.env.Accept(msg, w.Op())
	if !ok {
		return err
	}

	out := ScoresDocument{
		Envelope: artifact.NewEnvelope(scoresSchema, msg.Prefix, w.env.Clock()),
		Scores:   []CompetitorScore{},
	}

	var enriched EnrichedDocument
	w.env.LoadInput(ctx, msg.Prefix, ArtifactEnriched, &enriched, &out.Diagnostics)

	var strategy StrategyDocument
	w.env.LoadInput(ctx, msg.Prefix, ArtifactStrategy, &strategy, &out.Diagnostics)

	var evidence EvidenceDocument
	if !w.env.LoadInput(ctx, msg.Prefix, ArtifactEvidence, &evidence, &out.Diagnostics) {
		var log EvidenceLogDocument
		if w.env.LoadInput(ctx, msg.Prefix, ArtifactEvidenceLog, &log, &out.Diagnostics) {
			evidence.Entries = log.Entries
		}
	}

	var buyer BuyerLogicDocument
	w.env.LoadInput(ctx, msg.Prefix, ArtifactBuyerLogic, &buyer, &out.Diagnostics)

	inputs := scoringInputs{
		strategyText: strategy.TextBlob(),
		keywords:     strategyKeywords(strategy),
		evidence:     evidence.Entries,
		buyerTokens:  textutil.TokenSet(textutil.Tokenize(strings.Join(buyer.Labels(), " "), 4)),
	}

	out.Diagnostics.DeclaredCount = len(enriched.Competitors)
	for _, comp := range enriched.Competitors {
		out.Diagnostics.AttemptedCount++
		out.Scores = append(out.Scores, scoreCompetitor(comp, inputs))
		out.Diagnostics.ProducedCount++
	}
	if len(enriched.Competitors) == 0 {
		out.Diagnostics.AddSkipReason("no_enriched_competitors")
	}

	if err := w.env.WriteArtifact(ctx, msg.Prefix, ArtifactScores, out); err != nil {
		return err
	}
	note := fmt.Sprintf("competitors scored: %d", out.Diagnostics.ProducedCount)
	return w.env.Complete(ctx, msg, "competitorScore", note)
}

type scoringInputs struct {
	strategyText string
	keywords     []string
	evidence     []EvidenceEntry
	buyerTokens  map[string]struct{}
}

// strategyKeywords extracts the distinct tokens of at least four runes from
// the strategy's stated advantages and differentiators, in first-seen order.
func strategyKeywords(strategy StrategyDocument) []string {
	seen := map[string]struct{}{}
	var keywords []string
	for _, source := range [][]string{strategy.Advantages, strategy.Differentiators} {
		for _, text := range source {
			for _, token := range textutil.Tokenize(text, 4) {
				if _, dup := seen[token]; dup {
					continue
				}
				seen[token] = struct{}{}
				keywords = append(keywords, token)
			}
		}
	}
	return keywords
}

// scoreCompetitor evaluates one competitor in isolation. A panic while
// scoring becomes an all-unknown result with a constraint note so the rest
// of the batch still completes.
func scoreCompetitor(comp EnrichedCompetitor, inputs scoringInputs) (result CompetitorScore) {
	defer func() {
		if r := recover(); r != nil {
			result = CompetitorScore{
				Name:                   comp.Name,
				Slug:                   comp.Slug,
				CoverageOverlap:        ScoreUnknown,
				DifferentiationClarity: ScoreUnknown,
				ProofStrength:          ScoreNone,
				BuyerRelevance:         ScoreUnknown,
				Constraints:            []string{fmt.Sprintf("scoring_failed: %v", r)},
			}
		}
	}()

	result = CompetitorScore{
		Name:        comp.Name,
		Slug:        comp.Slug,
		Constraints: []string{},
	}
	result.CoverageOverlap = scoreCoverage(comp, inputs.strategyText, &result.Constraints)
	result.DifferentiationClarity = scoreDifferentiation(comp, inputs.keywords, &result.Constraints)
	result.ProofStrength = scoreProof(comp, inputs.evidence, &result.Constraints)
	result.BuyerRelevance = scoreBuyerRelevance(comp, inputs.buyerTokens, &result.Constraints)
	return result
}

// scoreCoverage counts the competitor's capability claims that substring
// match the strategy text.
func scoreCoverage(comp EnrichedCompetitor, strategyText string, constraints *[]string) string {
	if len(comp.Claims) == 0 {
		*constraints = append(*constraints, "no_claims_declared")
		return ScoreUnknown
	}
	if strategyText == "" {
		*constraints = append(*constraints, "no_strategy_text")
		return ScoreUnknown
	}
	hits := 0
	for _, claim := range comp.Claims {
		if strings.Contains(strategyText, strings.ToLower(claim)) {
			hits++
		}
	}
	switch {
	case hits >= 3:
		return ScoreHigh
	case hits >= 1:
		return ScoreMedium
	default:
		return ScoreLow
	}
}

// scoreDifferentiation counts strategy keywords absent from the competitor's
// own capability text; the more the strategy claims that the competitor does
// not, the clearer the differentiation.
func scoreDifferentiation(comp EnrichedCompetitor, keywords []string, constraints *[]string) string {
	if len(keywords) == 0 {
		*constraints = append(*constraints, "no_strategy_keywords")
		return ScoreUnknown
	}
	absent := 0
	for _, keyword := range keywords {
		if !strings.Contains(comp.ClaimText, keyword) {
			absent++
		}
	}
	switch {
	case absent >= 6:
		return ScoreClear
	case absent >= 1:
		return ScorePartial
	default:
		return ScoreWeak
	}
}

// scoreProof counts evidence entries that explicitly reference the
// competitor by name, slug, or competitor-specific tag.
func scoreProof(comp EnrichedCompetitor, evidence []EvidenceEntry, constraints *[]string) string {
	if len(evidence) == 0 {
		*constraints = append(*constraints, "no_evidence_corpus")
		return ScoreNone
	}
	name := strings.ToLower(comp.Name)
	slug := strings.ToLower(comp.Slug)
	competitorTag := "competitor:" + slug
	hits := 0
	for _, entry := range evidence {
		if evidenceReferences(entry, name, slug, competitorTag) {
			hits++
		}
	}
	switch {
	case hits >= 3:
		return ScoreStrong
	case hits >= 1:
		return ScoreModerate
	default:
		return ScoreWeak
	}
}

func evidenceReferences(entry EvidenceEntry, name, slug, competitorTag string) bool {
	for _, field := range []string{entry.Title, entry.Summary, entry.URL} {
		lower := strings.ToLower(field)
		if name != "" && strings.Contains(lower, name) {
			return true
		}
		if slug != "" && strings.Contains(lower, slug) {
			return true
		}
	}
	for _, tag := range entry.Tags {
		lower := strings.ToLower(tag)
		if lower == competitorTag {
			return true
		}
		if name != "" && strings.Contains(lower, name) {
			return true
		}
		if slug != "" && strings.Contains(lower, slug) {
			return true
		}
	}
	return false
}

// scoreBuyerRelevance measures token overlap between the competitor's claim
// text and the buyer-logic problem, urgency, and impact labels.
func scoreBuyerRelevance(comp EnrichedCompetitor, buyerTokens map[string]struct{}, constraints *[]string) string {
	if len(comp.Claims) == 0 {
		*constraints = append(*constraints, "no_claims_for_buyer_match")
		return ScoreUnknown
	}
	if len(buyerTokens) == 0 {
		*constraints = append(*constraints, "no_buyer_logic_text")
		return ScoreUnknown
	}
	overlap := 0
	counted := map[string]struct{}{}
	for _, token := range textutil.Tokenize(comp.ClaimText, 4) {
		if _, dup := counted[token]; dup {
			continue
		}
		if _, ok := buyerTokens[token]; ok {
			counted[token] = struct{}{}
			overlap++
		}
	}
	switch {
	case overlap >= 3:
		return ScoreHigh
	case overlap >= 1:
		return ScoreMedium
	default:
		return ScoreLow
	}
}
