package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 1000, cfg.TrainMaxIter)
	assert.Equal(t, 15*time.Minute, cfg.ScoreCacheTTL)
	assert.False(t, cfg.AlertsEnabled())
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TRAIN_MAX_ITER", "250")
	t.Setenv("SCORE_CACHE_TTL", "90s")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("ALERT_RECIPIENTS", "ops@example.com, , risk@example.com")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 250, cfg.TrainMaxIter)
	assert.Equal(t, 90*time.Second, cfg.ScoreCacheTTL)
	assert.Equal(t, []string{"ops@example.com", "risk@example.com"}, cfg.AlertRecipients)
	assert.True(t, cfg.AlertsEnabled())
}

func TestNewConfig_Required(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := NewConfig()
	assert.EqualError(t, err, "JWT_SECRET is required")
}
