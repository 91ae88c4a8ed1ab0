package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "insight", cfg.Name)
	assert.Equal(t, "zigment", cfg.Reporting.DefaultDataset)
	assert.Equal(t, 3, cfg.Explore.MaxProbes)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "conf", "insight.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = 4321
	cfg.Explore.ProbeRowLimit = 10
	cfg.LLM.APIKey = "should-not-persist"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4321, loaded.Server.Port)
	assert.Equal(t, 10, loaded.Explore.ProbeRowLimit)
	// secrets never touch disk
	if loaded.LLM.APIKey != "" {
		t.Errorf("API key leaked into config file: %q", loaded.LLM.APIKey)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("ZIGMENT_ORG_ID", "org_42")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "org_42", cfg.Reporting.OrgID)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "not a duration"
	assert.Equal(t, "2m0s", cfg.LLMTimeout().String())
	cfg.Explore.HintCacheTTL = ""
	assert.Equal(t, "10m0s", cfg.HintCacheTTL().String())
}
