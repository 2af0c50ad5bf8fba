package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.RunLocal)
	assert.Equal(t, "flat", cfg.Orders.PricingMode)
	assert.Equal(t, "USD", cfg.Orders.Currency)
	assert.Equal(t, "5", cfg.Orders.AlbumPrice.String())
	assert.Equal(t, "3", cfg.Orders.CollagePrice.String())
	assert.Equal(t, 20, cfg.Orders.DefaultPageSize)
	assert.Equal(t, 100, cfg.Orders.MaxPageSize)
	assert.Equal(t, 3, cfg.Orders.MaxTransitionAttempts)
	assert.Equal(t, 5*time.Second, cfg.Orders.RepositoryTimeout)
	assert.Equal(t, time.Hour, cfg.Storage.PresignTTL)
	assert.Equal(t, int64(50*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("RUN_LOCAL", "true")
	t.Setenv("PRICING_MODE", "itemized")
	t.Setenv("ALBUM_PRICE", "7.25")
	t.Setenv("MAX_UPLOAD_MB", "10")
	t.Setenv("REPOSITORY_TIMEOUT", "2s")
	t.Setenv("ORDERS_TABLE", "photobook-orders")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Server.RunLocal)
	assert.Equal(t, "itemized", cfg.Orders.PricingMode)
	assert.Equal(t, "7.25", cfg.Orders.AlbumPrice.String())
	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 2*time.Second, cfg.Orders.RepositoryTimeout)
	assert.Equal(t, "photobook-orders", cfg.Tables.Orders)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"PRICING_MODE":       "per-page",
		"ALBUM_PRICE":        "five",
		"REPOSITORY_TIMEOUT": "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
