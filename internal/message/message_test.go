package message

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Message {
	return Message{
		Op:     OpAfterEvidence,
		RunID:  "run-1",
		Prefix: "runs/campaign/anonymous/2025/01/05/run-1/",
		Page:   "leadgen",
	}
}

func TestDecodeRawJSONObject(t *testing.T) {
	raw, err := Encode(sample())
	require.NoError(t, err)

	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, sample(), msg)
}

func TestDecodeBase64JSON(t *testing.T) {
	raw, err := Encode(sample())
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(raw)

	msg, err := Decode([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, sample(), msg)
}

func TestDecodeJSONStringWrappingJSON(t *testing.T) {
	raw, err := Encode(sample())
	require.NoError(t, err)
	wrapped, err := json.Marshal(string(raw))
	require.NoError(t, err)

	msg, err := Decode(wrapped)
	require.NoError(t, err)
	assert.Equal(t, sample(), msg)
}

func TestDecodeBase64WrappedString(t *testing.T) {
	raw, err := Encode(sample())
	require.NoError(t, err)
	wrapped, err := json.Marshal(string(raw))
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(wrapped)

	msg, err := Decode([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, sample(), msg)
}

func TestDecodeEmptyAndNull(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = Decode([]byte("  "))
	assert.ErrorIs(t, err, ErrEmptyMessage)

	encodedNull := base64.StdEncoding.EncodeToString([]byte("null"))
	_, err = Decode([]byte(encodedNull))
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestDecodeMissingOp(t *testing.T) {
	_, err := Decode([]byte(`{"runId":"r1","prefix":"p/"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing op")
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("!!not base64, not json!!"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	msg := sample()
	assert.NoError(t, msg.Validate())

	missing := msg
	missing.Prefix = ""
	assert.Error(t, missing.Validate())

	missing = msg
	missing.RunID = " "
	assert.Error(t, missing.Validate())
}

func TestContinuationOp(t *testing.T) {
	assert.Equal(t, OpAfterEvidence, ContinuationOp(OpBuildEvidence))
	assert.Equal(t, OpAfterCompetitorScored, ContinuationOp(OpScoreCompetitors))
	assert.Equal(t, OpAfterAssemble, ContinuationOp(OpAssembleCampaign))
	assert.Equal(t, "", ContinuationOp("unknown_stage"))
}
