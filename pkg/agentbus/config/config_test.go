package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickmadden/agentbus/pkg/agentbus/config"
)

// TestString verifies string extraction with defaults.
func TestString(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal string
		want       string
	}{
		{"key exists", map[string]any{"name": "alice"}, "name", "default", "alice"},
		{"key missing", map[string]any{"other": "value"}, "name", "default", "default"},
		{"empty string", map[string]any{"name": ""}, "name", "default", ""},
		{"wrong type int", map[string]any{"name": 123}, "name", "default", "default"},
		{"nil map", nil, "name", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.String(tt.key, tt.defaultVal))
		})
	}
}

// TestDuration verifies duration extraction with various input types.
// Bare numbers are milliseconds, matching the scale of flush windows.
func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal time.Duration
		want       time.Duration
	}{
		{
			"string duration",
			map[string]any{"flush_interval": "30s"},
			"flush_interval",
			10 * time.Millisecond,
			30 * time.Second,
		},
		{
			"int milliseconds",
			map[string]any{"flush_interval": 10},
			"flush_interval",
			time.Second,
			10 * time.Millisecond,
		},
		{
			"int64 milliseconds",
			map[string]any{"flush_interval": int64(250)},
			"flush_interval",
			time.Second,
			250 * time.Millisecond,
		},
		{
			"float64 milliseconds",
			map[string]any{"flush_interval": 0.5},
			"flush_interval",
			time.Second,
			500 * time.Microsecond,
		},
		{
			"time.Duration directly",
			map[string]any{"flush_interval": 5 * time.Minute},
			"flush_interval",
			time.Second,
			5 * time.Minute,
		},
		{
			"key missing",
			map[string]any{"other": "value"},
			"flush_interval",
			10 * time.Millisecond,
			10 * time.Millisecond,
		},
		{
			"invalid string",
			map[string]any{"flush_interval": "invalid"},
			"flush_interval",
			10 * time.Millisecond,
			10 * time.Millisecond,
		},
		{
			"wrong type bool",
			map[string]any{"flush_interval": true},
			"flush_interval",
			10 * time.Millisecond,
			10 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Duration(tt.key, tt.defaultVal))
		})
	}
}

// TestBool verifies boolean extraction with defaults.
func TestBool(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal bool
		want       bool
	}{
		{"true value", map[string]any{"enabled": true}, "enabled", false, true},
		{"false value", map[string]any{"enabled": false}, "enabled", true, false},
		{"key missing", map[string]any{"other": true}, "enabled", false, false},
		{"wrong type string", map[string]any{"enabled": "true"}, "enabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Bool(tt.key, tt.defaultVal))
		})
	}
}

// TestInt verifies integer extraction with type coercion.
func TestInt(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal int
		want       int
	}{
		{"int value", map[string]any{"replay_limit": 42}, "replay_limit", 0, 42},
		{"int64 value", map[string]any{"replay_limit": int64(100)}, "replay_limit", 0, 100},
		{"float64 whole", map[string]any{"replay_limit": 50.0}, "replay_limit", 0, 50},
		{"float64 fractional", map[string]any{"replay_limit": 50.5}, "replay_limit", 99, 99},
		{"key missing", map[string]any{"other": 1}, "replay_limit", 99, 99},
		{"wrong type string", map[string]any{"replay_limit": "42"}, "replay_limit", 99, 99},
		{"zero", map[string]any{"replay_limit": 0}, "replay_limit", 99, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Int(tt.key, tt.defaultVal))
		})
	}
}

// TestFloat verifies float64 extraction with type coercion.
func TestFloat(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal float64
		want       float64
	}{
		{"float64 value", map[string]any{"rate": 3.14}, "rate", 0.0, 3.14},
		{"int value", map[string]any{"rate": 42}, "rate", 0.0, 42.0},
		{"key missing", map[string]any{"other": 1.0}, "rate", 9.99, 9.99},
		{"wrong type string", map[string]any{"rate": "3.14"}, "rate", 9.99, 9.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.InDelta(t, tt.want, cfg.Float(tt.key, tt.defaultVal), 0.001)
		})
	}
}

// TestSub verifies nested section access.
func TestSub(t *testing.T) {
	cfg := config.New(map[string]any{
		"bus": map[string]any{
			"replay_limit":   500,
			"flush_interval": 10,
		},
	})

	bus := cfg.Sub("bus")
	assert.Equal(t, 500, bus.Int("replay_limit", 0))
	assert.Equal(t, 10*time.Millisecond, bus.Duration("flush_interval", 0))

	// Missing or non-map keys yield an empty section, not a panic.
	assert.Equal(t, 7, cfg.Sub("missing").Int("anything", 7))
	cfg = config.New(map[string]any{"bus": "not-a-map"})
	assert.Equal(t, 7, cfg.Sub("bus").Int("anything", 7))
}

// TestHas verifies key existence check.
func TestHas(t *testing.T) {
	cfg := config.New(map[string]any{"name": "alice", "empty": nil})
	assert.True(t, cfg.Has("name"))
	assert.True(t, cfg.Has("empty"))
	assert.False(t, cfg.Has("missing"))
}

// TestFromYAML verifies YAML parsing.
func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
bus:
  replay_limit: 1000
  flush_interval: 10
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.String("log_level", ""))
	bus := cfg.Sub("bus")
	assert.Equal(t, 1000, bus.Int("replay_limit", 0))
	assert.Equal(t, 10*time.Millisecond, bus.Duration("flush_interval", 0))

	_, err = config.FromYAML([]byte(`invalid: yaml: content:`))
	assert.Error(t, err)
}

// TestFromJSON verifies JSON parsing.
func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"bus": {"replay_limit": 200}, "enabled": true}`))
	require.NoError(t, err)

	assert.True(t, cfg.Bool("enabled", false))
	// JSON numbers arrive as float64 and still coerce.
	assert.Equal(t, 200, cfg.Sub("bus").Int("replay_limit", 0))

	_, err = config.FromJSON([]byte(`{invalid json}`))
	assert.Error(t, err)
}

// TestFromFile verifies file loading with extension detection.
func TestFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	yamlPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: fromyaml"), 0o644))

	jsonPath := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"name": "fromjson"}`), 0o644))

	txtPath := filepath.Join(tmpDir, "config.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("content"), 0o644))

	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "fromyaml", cfg.String("name", ""))

	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "fromjson", cfg.String("name", ""))

	_, err = config.FromFile(txtPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file extension")

	_, err = config.FromFile(filepath.Join(tmpDir, "nonexistent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
