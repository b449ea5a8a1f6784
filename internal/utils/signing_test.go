package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACRoundTrip(t *testing.T) {
	data := []byte(`{"version":"v1"}`)
	sig := GenerateHMAC(data, "secret")

	require.Len(t, sig, 64)
	assert.NoError(t, VerifyHMAC(data, sig, "secret"))
	assert.Error(t, VerifyHMAC(data, sig, "other"))
	assert.Error(t, VerifyHMAC([]byte(`{"version":"v2"}`), sig, "secret"))
	assert.Error(t, VerifyHMAC(data, "zz", "secret"))
	assert.Error(t, VerifyHMAC(data, "", "secret"))
}
