package risk_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/cashflow-risk/internal/risk"
)

const signingKey = "test-signing-key"

func TestEncodeDecode_RoundTripScoresExactly(t *testing.T) {
	bundle, rows := trainedBundle(t)

	data, err := risk.Encode(bundle, signingKey)
	require.NoError(t, err)

	loaded, err := risk.Decode(data, signingKey)
	require.NoError(t, err)

	assert.Equal(t, bundle.Version, loaded.Version)
	assert.True(t, bundle.TrainedAt.Equal(loaded.TrainedAt))
	assert.Equal(t, bundle.Scaler, loaded.Scaler)
	assert.Equal(t, bundle.Classifier, loaded.Classifier)

	before, err := risk.Score(bundle, rows)
	require.NoError(t, err)
	after, err := risk.Score(loaded, rows)
	require.NoError(t, err)
	for i := range before {
		assert.Equal(t, before[i].RiskProbability, after[i].RiskProbability)
		assert.Equal(t, before[i].RiskScore, after[i].RiskScore)
	}
}

func TestDecode_RejectsTampering(t *testing.T) {
	bundle, _ := trainedBundle(t)
	data, err := risk.Encode(bundle, signingKey)
	require.NoError(t, err)

	_, err = risk.Decode(data, "another-key")
	assert.ErrorIs(t, err, risk.ErrInvalidBundle)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &env))
	var inner map[string]any
	require.NoError(t, json.Unmarshal(env["bundle"], &inner))
	inner["version"] = "forged"
	env["bundle"], err = json.Marshal(inner)
	require.NoError(t, err)
	forged, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = risk.Decode(forged, signingKey)
	assert.ErrorIs(t, err, risk.ErrInvalidBundle)
}

func TestDecode_RejectsFeatureOrderMismatch(t *testing.T) {
	bundle, _ := trainedBundle(t)
	swapped := *bundle
	swapped.Features = append([]string(nil), bundle.Features...)
	swapped.Features[0], swapped.Features[1] = swapped.Features[1], swapped.Features[0]

	_, err := risk.Encode(&swapped, "")
	assert.ErrorIs(t, err, risk.ErrInvalidBundle)

	raw, err := json.Marshal(&swapped)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]json.RawMessage{"bundle": raw})
	require.NoError(t, err)

	_, err = risk.Decode(payload, "")
	assert.ErrorIs(t, err, risk.ErrInvalidBundle)
}

func TestDecode_RejectsShapeMismatch(t *testing.T) {
	bundle, _ := trainedBundle(t)
	broken := *bundle
	clf := *bundle.Classifier
	clf.Weights = clf.Weights[:5]
	broken.Classifier = &clf

	raw, err := json.Marshal(&broken)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]json.RawMessage{"bundle": raw})
	require.NoError(t, err)

	_, err = risk.Decode(payload, "")
	assert.ErrorIs(t, err, risk.ErrInvalidBundle)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := risk.Decode([]byte("not json"), "")
	assert.ErrorIs(t, err, risk.ErrInvalidBundle)

	_, err = risk.Decode([]byte(`{}`), "")
	assert.ErrorIs(t, err, risk.ErrInvalidBundle)
}

func TestEncode_Unsigned(t *testing.T) {
	bundle, _ := trainedBundle(t)
	data, err := risk.Encode(bundle, "")
	require.NoError(t, err)

	_, err = risk.Decode(data, "")
	require.NoError(t, err)

	_, err = risk.Decode(data, signingKey)
	assert.ErrorIs(t, err, risk.ErrInvalidBundle, "a configured key requires a signature")
}
