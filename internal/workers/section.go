package workers

import (
	"context"
	"fmt"

	"loom/internal/artifact"
	"loom/internal/message"
	"loom/internal/services"
	"loom/internal/stage"
)

const sectionSchema = "loom/section/v1"

// SectionDocument is one section writer's output artifact.
type SectionDocument struct {
	artifact.Envelope
	Key    string   `json:"key"`
	Title  string   `json:"title"`
	Blocks []string `json:"blocks"`
}

// SectionWriter renders one campaign section from the outline. N writers run
// in parallel for one run, one per section key; each writes its own artifact
// so they never contend.
type SectionWriter struct {
	env *stage.Env
}

func NewSectionWriter(env *stage.Env) *SectionWriter {
	return &SectionWriter{env: env}
}

func (w *SectionWriter) Op() string { return message.OpWriteSection }

func (w *SectionWriter) HealthCheck(ctx context.Context) stage.Health {
	if w.env == nil || w.env.Artifacts == nil {
		return stage.Unhealthy("section", "artifact store unavailable")
	}
	return stage.Healthy("section")
}

func (w *SectionWriter) Execute(ctx context.Context, msg message.Message) error {
	ok, err := w.env.Accept(msg, w.Op())
	if !ok {
		return err
	}
	if msg.Section == "" {
		return services.Wrap(services.ErrValidation, "section", "validate message",
			"section key is required for fan-out", nil)
	}

	out := SectionDocument{
		Envelope: artifact.NewEnvelope(sectionSchema, msg.Prefix, w.env.Clock()),
		Key:      msg.Section,
		Title:    sectionTitles[msg.Section],
		Blocks:   []string{},
	}
	if out.Title == "" {
		out.Title = msg.Section
	}

	var outline OutlineDocument
	w.env.LoadInput(ctx, msg.Prefix, ArtifactOutline, &outline, &out.Diagnostics)

	planned := findSection(outline, msg.Section)
	switch {
	case len(outline.Sections) == 0:
		out.Diagnostics.AddSkipReason("no_outline")
	case planned == nil:
		out.Diagnostics.AddSkipReason("section_not_in_outline")
	default:
		out.Title = planned.Title
		out.Diagnostics.DeclaredCount = len(planned.TalkingPoints)
		for _, point := range planned.TalkingPoints {
			out.Diagnostics.AttemptedCount++
			out.Blocks = append(out.Blocks, renderBlock(planned.Key, point))
			out.Diagnostics.ProducedCount++
		}
		if len(planned.TalkingPoints) == 0 {
			out.Diagnostics.AddSkipReason("no_talking_points")
		}
	}

	if err := w.env.WriteArtifact(ctx, msg.Prefix, SectionArtifact(msg.Section), out); err != nil {
		return err
	}
	note := fmt.Sprintf("section %s: %d blocks", msg.Section, len(out.Blocks))
	return w.env.Complete(ctx, msg, "section_"+msg.Section, note)
}

func findSection(outline OutlineDocument, key string) *OutlineSection {
	for i := range outline.Sections {
		if outline.Sections[i].Key == key {
			return &outline.Sections[i]
		}
	}
	return nil
}

func renderBlock(key, point string) string {
	return fmt.Sprintf("[%s] %s", key, point)
}
