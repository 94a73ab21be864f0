package config //nolint:testpackage // tests exercise unexported internals directly.

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answerlab/go-grader/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5001, cfg.Server.Port)
	assert.InDelta(t, 0.7, cfg.Evaluation.ConfidenceThreshold, 1e-12)
	assert.Equal(t, 10000, cfg.Evaluation.MaxTextLength)
	assert.False(t, cfg.Embedding.Enabled)
	assert.Equal(t, "data/grader.db", cfg.Dataset.Path)
	assert.Equal(t, "logs/evaluations.jsonl", cfg.Audit.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
embedding:
  enabled: true
  endpoint: http://localhost:9000
logging:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "absent keys keep defaults")
	assert.True(t, cfg.Embedding.Enabled)
	assert.Equal(t, "http://localhost:9000", cfg.Embedding.Endpoint)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.InDelta(t, 0.7, cfg.Evaluation.ConfidenceThreshold, 1e-12)
}

func TestLoad_EnvOverridesBeatFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	t.Setenv("GRADER_PORT", "9090")
	t.Setenv("GRADER_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("GRADER_EMBEDDING_ENABLED", "true")
	t.Setenv("GRADER_EMBEDDING_ENDPOINT", "http://embedder:8090")
	t.Setenv("GRADER_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.85, cfg.Evaluation.ConfidenceThreshold, 1e-12)
	assert.True(t, cfg.Embedding.Enabled)
	assert.Equal(t, "http://embedder:8090", cfg.Embedding.Endpoint)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("GRADER_PORT", "not-a-port")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRADER_PORT")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [this is not\n  a mapping")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "zero port",
			content: "server:\n  port: 0\n",
		},
		{
			name:    "confidence threshold above one",
			content: "evaluation:\n  confidence_threshold: 1.5\n",
		},
		{
			name:    "embedding enabled without endpoint",
			content: "embedding:\n  enabled: true\n",
		},
		{
			name:    "unknown log level",
			content: "logging:\n  level: verbose\n",
		},
		{
			name:    "retry multiplier below one",
			content: "embedding:\n  retry:\n    multiplier: 0.5\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestRetryConfig_Policy(t *testing.T) {
	rc := RetryConfig{
		MaxAttempts:       4,
		InitialIntervalMs: 250,
		MaxIntervalMs:     3000,
		Multiplier:        1.5,
		UseJitter:         true,
	}

	policy := rc.Policy()
	assert.Equal(t, 4, policy.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, policy.InitialInterval)
	assert.Equal(t, 3*time.Second, policy.MaxInterval)
	assert.InDelta(t, 1.5, policy.Multiplier, 1e-12)
	assert.True(t, policy.UseJitter)
}

func TestServerConfig_Addr(t *testing.T) {
	sc := ServerConfig{Host: "0.0.0.0", Port: 5001}
	assert.Equal(t, "0.0.0.0:5001", sc.Addr())
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout())
	assert.Equal(t, 5*time.Second, cfg.Evaluation.EnsembleSoftTimeout())
	assert.Equal(t, 15*time.Second, cfg.Embedding.Timeout())
}
