package message

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Control ops consumed by the stage router.
const (
	OpAfterEvidence         = "afterevidence"
	OpAfterCompetitorEnrich = "aftercompetitorenrich"
	OpAfterCompetitorScored = "aftercompetitorscored"
	OpAfterOutline          = "afteroutline"
	OpAfterSection          = "aftersection"
	OpAfterAssemble         = "afterassemble"
	OpAfterViability        = "afterviability"
)

// Stage ops consumed by the workers sharing the stage queue.
const (
	OpBuildEvidence     = "build_evidence"
	OpEnrichCompetitors = "enrich_competitors"
	OpScoreCompetitors  = "score_competitors"
	OpScoreViability    = "score_viability"
	OpBuildOutline      = "build_outline"
	OpWriteSection      = "write_section"
	OpAssembleCampaign  = "assemble_campaign"
)

// Message is the unit of queue transport. Messages are immutable once
// enqueued; a redelivery carries the same bytes.
type Message struct {
	Op          string `json:"op"`
	RunID       string `json:"runId"`
	Prefix      string `json:"prefix"`
	Page        string `json:"page,omitempty"`
	Section     string `json:"section,omitempty"`
	ParentRunID string `json:"parentRunId,omitempty"`
}

// ErrEmptyMessage is returned when a delivery body contains no payload.
var ErrEmptyMessage = errors.New("empty message body")

// Encode serializes a message to its canonical JSON wire form.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// Decode normalizes any accepted wire shape into a typed Message. It accepts
// a raw JSON object, a JSON string that itself contains JSON, or a
// base64-encoded rendition of either. The literal "null" decodes to an error
// because a stage message without an op is unroutable.
func Decode(raw []byte) (Message, error) {
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return Message{}, ErrEmptyMessage
	}

	// Base64 transport encoding is detected structurally: valid JSON never
	// starts with a base64 alphabet rune unless it is a bare scalar, and bare
	// scalars are not valid messages anyway.
	if !strings.HasPrefix(body, "{") && !strings.HasPrefix(body, "\"") {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return Message{}, fmt.Errorf("decode message: not JSON and not base64: %w", err)
		}
		body = strings.TrimSpace(string(decoded))
		if body == "" {
			return Message{}, ErrEmptyMessage
		}
	}

	// A JSON string wrapping the actual JSON payload.
	if strings.HasPrefix(body, "\"") {
		var inner string
		if err := json.Unmarshal([]byte(body), &inner); err != nil {
			return Message{}, fmt.Errorf("decode message: unwrap string payload: %w", err)
		}
		body = strings.TrimSpace(inner)
	}

	if body == "null" || body == "" {
		return Message{}, ErrEmptyMessage
	}

	var msg Message
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if strings.TrimSpace(msg.Op) == "" {
		return Message{}, errors.New("decode message: missing op")
	}
	return msg, nil
}

// Validate checks the fields every handler needs before doing work.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Op) == "" {
		return errors.New("message: missing op")
	}
	if strings.TrimSpace(m.RunID) == "" {
		return errors.New("message: missing runId")
	}
	if strings.TrimSpace(m.Prefix) == "" {
		return errors.New("message: missing prefix")
	}
	return nil
}

// ContinuationOp maps a stage op to the control op a worker enqueues after
// completing that stage. Unknown ops map to an empty string.
func ContinuationOp(stageOp string) string {
	switch stageOp {
	case OpBuildEvidence:
		return OpAfterEvidence
	case OpEnrichCompetitors:
		return OpAfterCompetitorEnrich
	case OpScoreCompetitors:
		return OpAfterCompetitorScored
	case OpScoreViability:
		return OpAfterViability
	case OpBuildOutline:
		return OpAfterOutline
	case OpWriteSection:
		return OpAfterSection
	case OpAssembleCampaign:
		return OpAfterAssemble
	default:
		return ""
	}
}
