package workers

import "strings"

// Artifact file names under a run prefix. The router and the workers must
// agree on these byte for byte; drift silently orphans artifacts.
const (
	ArtifactSources      = "sources.json"
	ArtifactEvidenceLog  = "evidence_log.json"
	ArtifactEvidence     = "evidence.json"
	ArtifactCompetitors  = "competitors.json"
	ArtifactEnriched     = "competitors_enriched.json"
	ArtifactScores       = "competitor_scores.json"
	ArtifactStrategy     = "strategy_v2/campaign_strategy.json"
	ArtifactBuyerLogic   = "buyer_logic.json"
	ArtifactViabilityIn  = "viability_inputs.json"
	ArtifactViability    = "viability_scores.json"
	ArtifactOutline      = "outline.json"
	ArtifactCampaign     = "campaign.json"
	sectionArtifactStem  = "section_"
	sectionArtifactExt   = ".json"
)

// SectionArtifact names the per-section output file for a section key.
func SectionArtifact(key string) string {
	return sectionArtifactStem + key + sectionArtifactExt
}

// DeclaredSource is one entry of the caller-provided source hint list.
type DeclaredSource struct {
	Title   string   `json:"title"`
	URL     string   `json:"url,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// SourcesDocument is the caller-supplied input to the evidence stage.
type SourcesDocument struct {
	Sources []DeclaredSource `json:"sources"`
}

// EvidenceEntry is one normalized item of the evidence corpus.
type EvidenceEntry struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary,omitempty"`
	URL     string   `json:"url,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// EvidenceDocument is the corpus read by downstream scorers. Both
// evidence.json and evidence_log.json carry this shape.
type EvidenceDocument struct {
	Entries []EvidenceEntry `json:"entries"`
}

// DeclaredCompetitor is one entry of the caller-provided competitor list.
type DeclaredCompetitor struct {
	Name   string   `json:"name"`
	Slug   string   `json:"slug,omitempty"`
	URL    string   `json:"url,omitempty"`
	Claims []string `json:"claims,omitempty"`
}

// CompetitorsDocument is the caller-supplied input to the enrich stage.
type CompetitorsDocument struct {
	Competitors []DeclaredCompetitor `json:"competitors"`
}

// EnrichedCompetitor is the enrich stage's per-competitor record.
type EnrichedCompetitor struct {
	Name      string   `json:"name"`
	Slug      string   `json:"slug"`
	URL       string   `json:"url,omitempty"`
	Claims    []string `json:"claims"`
	ClaimText string   `json:"claim_text"`
}

// StrategyDocument is the campaign strategy consumed by the scorers.
type StrategyDocument struct {
	Positioning     string   `json:"positioning,omitempty"`
	Narrative       string   `json:"narrative,omitempty"`
	Advantages      []string `json:"advantages,omitempty"`
	Differentiators []string `json:"differentiators,omitempty"`
}

// TextBlob joins the strategy's prose fields into one lowercase haystack.
func (s StrategyDocument) TextBlob() string {
	parts := make([]string, 0, 2+len(s.Advantages)+len(s.Differentiators))
	for _, p := range []string{s.Positioning, s.Narrative} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, s.Advantages...)
	parts = append(parts, s.Differentiators...)
	return strings.ToLower(strings.Join(parts, " "))
}

// BuyerLogicDocument carries the buyer problem framing used for relevance
// scoring.
type BuyerLogicDocument struct {
	Problems []string `json:"problems,omitempty"`
	Urgency  []string `json:"urgency,omitempty"`
	Impact   []string `json:"impact,omitempty"`
}

// Labels flattens the buyer-logic fields into one label list.
func (b BuyerLogicDocument) Labels() []string {
	labels := make([]string, 0, len(b.Problems)+len(b.Urgency)+len(b.Impact))
	labels = append(labels, b.Problems...)
	labels = append(labels, b.Urgency...)
	labels = append(labels, b.Impact...)
	return labels
}
