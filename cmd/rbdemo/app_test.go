package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/benz9527/xrbtree/lib/tree"
)

func newTestConfig(t *testing.T, content string) *Config {
	cfg, err := LoadConfig(nil, writeConfigFile(t, content))
	require.NoError(t, err)
	return cfg
}

func decodeLogs(t *testing.T, buf *bytes.Buffer) []map[string]any {
	entries := make([]map[string]any, 0, 32)
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		entries = append(entries, m)
	}
	return entries
}

func findLogs(entries []map[string]any, msg string) []map[string]any {
	return lo.Filter(entries, func(entry map[string]any, _ int) bool {
		return entry["msg"] == msg
	})
}

func ints(t *testing.T, v any) []int {
	arr, ok := v.([]any)
	require.True(t, ok)
	return lo.Map(arr, func(item any, _ int) int {
		return int(item.(float64))
	})
}

func TestDemo_Run(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := newTestConfig(t, "")
	require.NoError(t, run(context.Background(), cfg, buf))

	entries := decodeLogs(t, buf)
	traverses := findLogs(entries, "[rbdemo] traverse")
	require.Len(t, traverses, 2)
	require.Equal(t, "forward", traverses[0]["order"])
	require.Equal(t, []int{6, 19, 21, 34, 90}, ints(t, traverses[0]["keys"]))
	require.Equal(t, []int{1, 1, 1, 1, 1}, ints(t, traverses[0]["vals"]))
	require.Equal(t, "backward", traverses[1]["order"])
	require.Equal(t, []int{90, 34, 21, 19, 6}, ints(t, traverses[1]["keys"]))
	require.Equal(t, []int{1, 1, 2, 1, 1}, ints(t, traverses[1]["vals"]))

	replaced := findLogs(entries, "[rbdemo] replaced")
	require.Len(t, replaced, 1)
	require.Equal(t, float64(21), replaced[0]["key"])
	require.Equal(t, float64(1), replaced[0]["old"])
	require.Equal(t, float64(2), replaced[0]["new"])

	erased := findLogs(entries, "[rbdemo] erased")
	require.Len(t, erased, 1)
	require.Equal(t, []int{6, 19, 21, 34, 90}, ints(t, erased[0]["keys"]))
	require.Equal(t, float64(0), erased[0]["len"])
	require.Equal(t, "rbdemo", erased[0]["component"])
}

func TestDemo_DuplicateSeedAndBorrowPred(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := newTestConfig(t, `log:
  level: debug
tree:
  keys: [5, 5, 7, 1, 9, 3]
  replace_key: 5
  replace_payload: 50
  borrow_pred: true
`)
	require.NoError(t, run(context.Background(), cfg, buf))

	entries := decodeLogs(t, buf)
	exists := findLogs(entries, "[rbdemo] seed key exists")
	require.Len(t, exists, 1)
	require.Equal(t, "WARN", exists[0]["lvl"])
	// The rejected insert is logged by the tree too.
	rejected := findLogs(entries, "[rbtree] operation rejected")
	require.Len(t, rejected, 1)
	require.Equal(t, "rbdemo.rbtree", rejected[0]["component"])

	traverses := findLogs(entries, "[rbdemo] traverse")
	require.Len(t, traverses, 2)
	require.Equal(t, []int{9, 7, 5, 3, 1}, ints(t, traverses[1]["keys"]))
	require.Equal(t, []int{1, 1, 50, 1, 1}, ints(t, traverses[1]["vals"]))
	erased := findLogs(entries, "[rbdemo] erased")
	require.Equal(t, []int{1, 3, 5, 7, 9}, ints(t, erased[0]["keys"]))

	// Fx lifecycle events go through the same logger.
	require.NotEmpty(t, lo.Filter(entries, func(entry map[string]any, _ int) bool {
		return entry["component"] == "Fx"
	}))
}

func TestDemo_PrometheusExporter(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := newTestConfig(t, `metrics:
  exporter: prometheus
  listen: 127.0.0.1:0
`)
	require.NoError(t, run(context.Background(), cfg, buf))
	served := findLogs(decodeLogs(t, buf), "[rbdemo] metrics served")
	require.Len(t, served, 1)
	require.NotEmpty(t, served[0]["addr"])
}

func TestDemo_Hold(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := newTestConfig(t, "hold: true\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A done context releases the hold.
	require.NoError(t, run(ctx, cfg, buf))
	require.Len(t, findLogs(decodeLogs(t, buf), "[rbdemo] erased"), 1)
}

func TestDemo_StartFailureReleasesMetrics(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := newTestConfig(t, `metrics:
  exporter: console
  interval: 1h
`)
	// Bypass the validation, the replace finds no spare slot.
	cfg.Tree.Capacity = uint32(len(cfg.Tree.Keys))
	err := run(context.Background(), cfg, buf)
	require.ErrorIs(t, err, tree.ErrAllocationFailure)

	failed := findLogs(decodeLogs(t, buf), "[rbdemo] start failed")
	require.Len(t, failed, 1)
	require.Equal(t, "ERROR", failed[0]["lvl"])
	require.Contains(t, failed[0]["error"], "[rbdemo] replace")
	frames, ok := failed[0]["errorStack"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, frames)

	// The periodic reader was shut down and flushed before the hour elapsed.
	require.Contains(t, buf.String(), "rbtree.insert.count")
}

func TestRootCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--keys", "3,1,2"})
	require.ErrorIs(t, cmd.Execute(), ErrReplaceKeyNotSeeded)

	buf.Reset()
	cmd = newRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--config", writeConfigFile(t, "tree:\n  replace_key: 2\n"),
		"--keys", "3,1,2",
		"--log-level", "info",
	})
	require.NoError(t, cmd.Execute())
	traverses := findLogs(decodeLogs(t, buf), "[rbdemo] traverse")
	require.Len(t, traverses, 2)
	require.Equal(t, []int{1, 2, 3}, ints(t, traverses[0]["keys"]))
	require.Equal(t, []int{1, 2, 1}, ints(t, traverses[1]["vals"]))
}
