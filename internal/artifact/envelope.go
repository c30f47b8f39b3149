package artifact

import (
	"sort"
	"time"
)

// Diagnostics explains why an artifact is empty or degenerate. Every stage
// output carries one so "ran and found nothing" is distinguishable from
// "didn't run".
type Diagnostics struct {
	DeclaredCount  int             `json:"declared_count"`
	AttemptedCount int             `json:"attempted_count"`
	ProducedCount  int             `json:"produced_count"`
	SkipReasons    []string        `json:"skip_reasons"`
	InputsPresent  map[string]bool `json:"inputs_present"`
}

// Envelope is the common outer shape of every stage output artifact. The
// stage-specific payload is carried alongside via struct embedding in the
// concrete artifact types.
type Envelope struct {
	Schema      string      `json:"schema"`
	GeneratedAt time.Time   `json:"generated_at"`
	Prefix      string      `json:"prefix"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// NewEnvelope stamps a fresh envelope for a stage output.
func NewEnvelope(schema, prefix string, now time.Time) Envelope {
	return Envelope{
		Schema:      schema,
		GeneratedAt: now.UTC(),
		Prefix:      prefix,
		Diagnostics: Diagnostics{
			SkipReasons:   []string{},
			InputsPresent: map[string]bool{},
		},
	}
}

// AddSkipReason records a skip reason, de-duplicated and sorted so the
// artifact bytes stay deterministic across re-executions.
func (d *Diagnostics) AddSkipReason(reason string) {
	if reason == "" {
		return
	}
	for _, existing := range d.SkipReasons {
		if existing == reason {
			return
		}
	}
	d.SkipReasons = append(d.SkipReasons, reason)
	sort.Strings(d.SkipReasons)
}

// SetInputPresent records whether a named input document was available.
func (d *Diagnostics) SetInputPresent(name string, present bool) {
	if d.InputsPresent == nil {
		d.InputsPresent = map[string]bool{}
	}
	d.InputsPresent[name] = present
}
