package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"OTEL_ENABLED", "OTEL_SERVICE_NAME", "OTEL_SERVICE_VERSION",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL",
		"OTEL_EXPORTER_OTLP_HEADERS", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_TRACES_SAMPLER", "OTEL_TRACES_SAMPLER_ARG", "OTEL_RESOURCE_ATTRIBUTES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadFromEnv()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "jobsystem", cfg.ServiceName)
	assert.Equal(t, "unknown", cfg.ServiceVersion)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.Empty(t, cfg.Headers)
}

func TestLoadFromEnv_Custom(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTEL_ENABLED", "TRUE")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer token=abc, X-Team=engine")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=ci")

	cfg := LoadFromEnv()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.Equal(t, map[string]string{"Authorization": "Bearer token=abc", "X-Team": "engine"}, cfg.Headers)
	assert.Equal(t, "ci", cfg.ResourceAttrs["deployment.environment"])
}

func TestParsePairs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"spaces", " a = 1 , b = 2 ", map[string]string{"a": "1", "b": "2"}},
		{"empty value", "a=", map[string]string{"a": ""}},
		{"invalid entries skipped", "valid=1,invalid,=x", map[string]string{"valid": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parsePairs(tt.input))
		})
	}
}

func TestSplitScheme(t *testing.T) {
	endpoint, plain := splitScheme("http://collector:4317")
	assert.Equal(t, "collector:4317", endpoint)
	assert.True(t, plain)

	endpoint, plain = splitScheme("https://collector:4317")
	assert.Equal(t, "collector:4317", endpoint)
	assert.False(t, plain)

	endpoint, plain = splitScheme("collector:4317")
	assert.Equal(t, "collector:4317", endpoint)
	assert.False(t, plain)
}

func TestParseRatio(t *testing.T) {
	assert.Equal(t, 0.5, parseRatio("0.5"))
	assert.Equal(t, 1.0, parseRatio(""))
	assert.Equal(t, 1.0, parseRatio("abc"))
	assert.Equal(t, 0.0, parseRatio("-3"))
	assert.Equal(t, 1.0, parseRatio("7"))
}

func TestNewSampler(t *testing.T) {
	for name, want := range map[string]string{
		"":                         "AlwaysOnSampler",
		"always_off":               "AlwaysOffSampler",
		"traceidratio":             "TraceIDRatioBased",
		"parentbased_always_on":    "ParentBased",
		"parentbased_traceidratio": "ParentBased",
	} {
		s := newSampler(&Config{Sampler: name, SamplerArg: "0.5"})
		assert.Contains(t, s.Description(), want, name)
	}
}
