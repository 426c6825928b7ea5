package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHIPDOCS_API_ADDR", "")
	t.Setenv("SHIPDOCS_BLOB_BACKEND", "")
	cfg := Load()
	require.Equal(t, ":8080", cfg.APIAddr)
	require.Equal(t, "local", cfg.BlobBackend)
	require.Equal(t, "document-uploads", cfg.UploadsBucket)
	require.Equal(t, "generated-documents", cfg.GeneratedBucket)
	require.Equal(t, "PackingSlip_Template.pdf", cfg.PackingSlipTemplate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SHIPDOCS_BLOB_BACKEND", "GCS")
	t.Setenv("SHIPDOCS_UPLOAD_MAX_MB", "16")
	t.Setenv("SHIPDOCS_DEBUG", "true")
	t.Setenv("SHIPDOCS_SCHEMA_CACHE_TTL_SECONDS", "not-a-number")
	cfg := Load()
	require.Equal(t, "gcs", cfg.BlobBackend)
	require.Equal(t, 16, cfg.UploadMaxMB)
	require.True(t, cfg.Debug)
	require.Equal(t, 3600, cfg.SchemaCacheTTLSec)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(Config{Debug: true})
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(-1))
}
