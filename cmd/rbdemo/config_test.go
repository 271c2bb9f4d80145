package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "rbdemo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(nil, writeConfigFile(t, ""))
	require.NoError(t, err)
	require.Equal(t, "INFO", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Encoder)
	require.Equal(t, defaultSeedKeys, cfg.Tree.Keys)
	require.Equal(t, defaultPayload, cfg.Tree.Payload)
	require.Equal(t, defaultReplaceKey, cfg.Tree.ReplaceKey)
	require.Equal(t, defaultReplacePayload, cfg.Tree.ReplacePayload)
	require.Equal(t, uint32(0), cfg.Tree.Capacity)
	require.False(t, cfg.Tree.BorrowPred)
	require.Equal(t, "none", cfg.Metrics.Exporter)
	require.Equal(t, defaultListen, cfg.Metrics.Listen)
	require.Equal(t, 10*time.Second, cfg.Metrics.Interval)
	require.False(t, cfg.Hold)

	// No file in the working directory.
	cfg, err = LoadConfig(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, defaultSeedKeys, cfg.Tree.Keys)
}

func TestLoadConfig_File(t *testing.T) {
	cfg, err := LoadConfig(nil, writeConfigFile(t, `log:
  level: debug
  encoder: text
tree:
  keys: [5, 3, 8]
  payload: 7
  replace_key: 3
  replace_payload: 9
  capacity: 4
  borrow_pred: true
metrics:
  exporter: console
  interval: 1m
hold: true
`))
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Encoder)
	require.Equal(t, []int{5, 3, 8}, cfg.Tree.Keys)
	require.Equal(t, 7, cfg.Tree.Payload)
	require.Equal(t, 3, cfg.Tree.ReplaceKey)
	require.Equal(t, 9, cfg.Tree.ReplacePayload)
	require.Equal(t, uint32(4), cfg.Tree.Capacity)
	require.True(t, cfg.Tree.BorrowPred)
	require.Equal(t, "console", cfg.Metrics.Exporter)
	require.Equal(t, time.Minute, cfg.Metrics.Interval)
	require.True(t, cfg.Hold)

	_, err = LoadConfig(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("RBDEMO_LOG_LEVEL", "warn")
	t.Setenv("RBDEMO_TREE_KEYS", "1,2,3")
	t.Setenv("RBDEMO_TREE_REPLACE_KEY", "2")
	t.Setenv("RBDEMO_METRICS_EXPORTER", "prometheus")

	cfg, err := LoadConfig(nil, writeConfigFile(t, "tree:\n  payload: 4\n"))
	require.NoError(t, err)
	require.Equal(t, "WARN", cfg.Log.Level)
	require.Equal(t, []int{1, 2, 3}, cfg.Tree.Keys)
	require.Equal(t, 2, cfg.Tree.ReplaceKey)
	require.Equal(t, 4, cfg.Tree.Payload)
	require.Equal(t, "prometheus", cfg.Metrics.Exporter)
}

func TestLoadConfig_Invalid(t *testing.T) {
	type testcase struct {
		name     string
		content  string
		expected error
	}
	testcases := []testcase{
		{
			name:     "log level",
			content:  "log:\n  level: trace\n",
			expected: ErrInvalidLogLevel,
		},
		{
			name:     "log encoder",
			content:  "log:\n  encoder: xml\n",
			expected: ErrInvalidLogEncoder,
		},
		{
			name:     "exporter",
			content:  "metrics:\n  exporter: otlp\n",
			expected: ErrInvalidExporter,
		},
		{
			name:     "interval",
			content:  "metrics:\n  interval: 0s\n",
			expected: ErrInvalidInterval,
		},
		{
			name:     "empty keys",
			content:  "tree:\n  keys: []\n",
			expected: ErrEmptySeedKeys,
		},
		{
			name:     "over capacity",
			content:  "tree:\n  capacity: 2\n",
			expected: ErrSeedKeysOverCapacity,
		},
		{
			name:     "replace key",
			content:  "tree:\n  replace_key: 100\n",
			expected: ErrReplaceKeyNotSeeded,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			_, err := LoadConfig(nil, writeConfigFile(tt, tc.content))
			require.ErrorIs(tt, err, tc.expected)
		})
	}

	// Duplicates take one slot.
	_, err := LoadConfig(nil, writeConfigFile(t, "tree:\n  keys: [1, 1, 2]\n  replace_key: 1\n  capacity: 3\n"))
	require.NoError(t, err)
}

func TestLoadConfig_CapacityKeepsReplaceSlot(t *testing.T) {
	// As many slots as seed keys leaves nothing for the replace.
	_, err := LoadConfig(nil, writeConfigFile(t, "tree:\n  capacity: 5\n"))
	require.ErrorIs(t, err, ErrSeedKeysOverCapacity)

	cfg, err := LoadConfig(nil, writeConfigFile(t, "tree:\n  capacity: 6\n"))
	require.NoError(t, err)
	require.Equal(t, uint32(6), cfg.Tree.Capacity)
	require.NoError(t, run(context.Background(), cfg, &bytes.Buffer{}))
}
