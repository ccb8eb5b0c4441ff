package rconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "./var/rangedb", cfg.DBHome)
	assert.False(t, cfg.UseStored)
}

func TestLoad_NoConfigFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(64<<20), cfg.CacheSize)
	assert.Equal(t, 5*time.Second, cfg.StoredRequestTimeout)
}

func TestValidate(t *testing.T) {
	t.Run("rejects empty db_home", func(t *testing.T) {
		cfg := Default()
		cfg.DBHome = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive cache size", func(t *testing.T) {
		cfg := Default()
		cfg.CacheSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("requires stored_mq_name when use_stored is set", func(t *testing.T) {
		cfg := Default()
		cfg.UseStored = true
		cfg.StoredMQName = ""
		assert.Error(t, cfg.Validate())
	})
}
