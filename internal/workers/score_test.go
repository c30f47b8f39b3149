package workers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/message"
	"loom/internal/textutil"
)

func evidenceAbout(name string, hits int) []EvidenceEntry {
	entries := make([]EvidenceEntry, 0, hits)
	for i := 0; i < hits; i++ {
		entries = append(entries, EvidenceEntry{
			Title:   fmt.Sprintf("Teardown %d of %s", i+1, name),
			Summary: "analysis",
		})
	}
	return entries
}

func TestProofStrengthBoundaries(t *testing.T) {
	comp := EnrichedCompetitor{Name: "Acme", Slug: "acme", Claims: []string{"x"}}

	cases := []struct {
		name     string
		evidence []EvidenceEntry
		want     string
	}{
		{"three hits", evidenceAbout("Acme", 3), ScoreStrong},
		{"two hits", evidenceAbout("Acme", 2), ScoreModerate},
		{"one hit", evidenceAbout("Acme", 1), ScoreModerate},
		{"corpus without mentions", evidenceAbout("Globex", 4), ScoreWeak},
		{"empty corpus", nil, ScoreNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var constraints []string
			assert.Equal(t, tc.want, scoreProof(comp, tc.evidence, &constraints))
		})
	}
}

func TestProofStrengthMatchesCompetitorTag(t *testing.T) {
	comp := EnrichedCompetitor{Name: "Acme", Slug: "acme"}
	evidence := []EvidenceEntry{
		{Title: "Industry report", Tags: []string{"competitor:acme"}},
		{Title: "Unrelated", Tags: []string{"market"}},
	}
	var constraints []string
	assert.Equal(t, ScoreModerate, scoreProof(comp, evidence, &constraints))
}

func TestCoverageOverlapBoundaries(t *testing.T) {
	strategyText := "we offer fast onboarding api access single sign-on and audit logs"

	cases := []struct {
		name   string
		claims []string
		want   string
	}{
		{"three matches", []string{"fast onboarding", "api access", "audit logs"}, ScoreHigh},
		{"one match", []string{"fast onboarding", "quantum mesh"}, ScoreMedium},
		{"no matches", []string{"quantum mesh"}, ScoreLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			comp := EnrichedCompetitor{Name: "Acme", Claims: tc.claims}
			var constraints []string
			assert.Equal(t, tc.want, scoreCoverage(comp, strategyText, &constraints))
		})
	}

	t.Run("no claims is unknown", func(t *testing.T) {
		var constraints []string
		got := scoreCoverage(EnrichedCompetitor{Name: "Acme"}, strategyText, &constraints)
		assert.Equal(t, ScoreUnknown, got)
		assert.Contains(t, constraints, "no_claims_declared")
	})
	t.Run("no strategy text is unknown", func(t *testing.T) {
		var constraints []string
		got := scoreCoverage(EnrichedCompetitor{Name: "Acme", Claims: []string{"x"}}, "", &constraints)
		assert.Equal(t, ScoreUnknown, got)
		assert.Contains(t, constraints, "no_strategy_text")
	})
}

func TestDifferentiationClarityBoundaries(t *testing.T) {
	keywords := strategyKeywords(StrategyDocument{
		Advantages: []string{"realtime collaborative editing engine", "granular permission model"},
	})
	require.GreaterOrEqual(t, len(keywords), 6)

	t.Run("all keywords absent is clear", func(t *testing.T) {
		comp := EnrichedCompetitor{ClaimText: "batch exports"}
		var constraints []string
		assert.Equal(t, ScoreClear, scoreDifferentiation(comp, keywords, &constraints))
	})
	t.Run("all keywords present is weak", func(t *testing.T) {
		comp := EnrichedCompetitor{ClaimText: "realtime collaborative editing engine granular permission model"}
		var constraints []string
		assert.Equal(t, ScoreWeak, scoreDifferentiation(comp, keywords, &constraints))
	})
	t.Run("no keywords is unknown", func(t *testing.T) {
		var constraints []string
		assert.Equal(t, ScoreUnknown, scoreDifferentiation(EnrichedCompetitor{}, nil, &constraints))
		assert.Contains(t, constraints, "no_strategy_keywords")
	})
}

func TestBuyerRelevanceBoundaries(t *testing.T) {
	buyerTokens := textutil.TokenSet(textutil.Tokenize("slow manual onboarding costs compliance risk", 4))

	cases := []struct {
		name string
		comp EnrichedCompetitor
		want string
	}{
		{
			"three overlapping tokens",
			EnrichedCompetitor{Claims: []string{"x"}, ClaimText: "automated onboarding reduces compliance costs"},
			ScoreHigh,
		},
		{
			"one overlapping token",
			EnrichedCompetitor{Claims: []string{"x"}, ClaimText: "faster onboarding"},
			ScoreMedium,
		},
		{
			"no overlap",
			EnrichedCompetitor{Claims: []string{"x"}, ClaimText: "quantum mesh"},
			ScoreLow,
		},
		{
			"no claims",
			EnrichedCompetitor{},
			ScoreUnknown,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var constraints []string
			assert.Equal(t, tc.want, scoreBuyerRelevance(tc.comp, buyerTokens, &constraints))
		})
	}

	t.Run("no buyer logic is unknown", func(t *testing.T) {
		comp := EnrichedCompetitor{Claims: []string{"x"}, ClaimText: "anything"}
		var constraints []string
		assert.Equal(t, ScoreUnknown, scoreBuyerRelevance(comp, map[string]struct{}{}, &constraints))
		assert.Contains(t, constraints, "no_buyer_logic_text")
	})
}

func TestScoreWorkerWritesArtifactWithoutInputs(t *testing.T) {
	env, _ := newWorkerEnv(t)
	worker := NewScoreWorker(env)

	msg := message.Message{Op: message.OpScoreCompetitors, RunID: "r1", Prefix: testPrefix}
	require.NoError(t, worker.Execute(context.Background(), msg))

	var out ScoresDocument
	getArtifact(t, env, ArtifactScores, &out)
	assert.Empty(t, out.Scores)
	assert.Contains(t, out.Diagnostics.SkipReasons, "no_enriched_competitors")
	assert.False(t, out.Diagnostics.InputsPresent[ArtifactEnriched])
}

func TestScoreWorkerEndToEnd(t *testing.T) {
	env, _ := newWorkerEnv(t)
	putArtifact(t, env, ArtifactEnriched, EnrichedDocument{Competitors: []EnrichedCompetitor{
		{Name: "Acme", Slug: "acme", Claims: []string{"fast onboarding"}, ClaimText: "fast onboarding"},
		{Name: "Globex", Slug: "globex"},
	}})
	putArtifact(t, env, ArtifactStrategy, StrategyDocument{
		Positioning: "fast onboarding for regulated teams",
		Advantages:  []string{"granular audit trail with instant compliance reporting"},
	})
	putArtifact(t, env, ArtifactEvidence, EvidenceDocument{Entries: evidenceAbout("Acme", 3)})
	putArtifact(t, env, ArtifactBuyerLogic, BuyerLogicDocument{Problems: []string{"slow onboarding"}})

	worker := NewScoreWorker(env)
	msg := message.Message{Op: message.OpScoreCompetitors, RunID: "r1", Prefix: testPrefix}
	require.NoError(t, worker.Execute(context.Background(), msg))

	var out ScoresDocument
	getArtifact(t, env, ArtifactScores, &out)
	require.Len(t, out.Scores, 2)

	acme := out.Scores[0]
	assert.Equal(t, ScoreMedium, acme.CoverageOverlap)
	assert.Equal(t, ScoreStrong, acme.ProofStrength)
	assert.Equal(t, ScoreMedium, acme.BuyerRelevance)

	// Globex has no claims: degraded scores with constraints, not a batch
	// failure.
	globex := out.Scores[1]
	assert.Equal(t, ScoreUnknown, globex.CoverageOverlap)
	assert.Equal(t, ScoreWeak, globex.ProofStrength)
	assert.Equal(t, ScoreUnknown, globex.BuyerRelevance)
	assert.NotEmpty(t, globex.Constraints)
}
