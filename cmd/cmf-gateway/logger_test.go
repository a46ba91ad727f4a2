// ABOUTME: Tests for the CLI logger setup and config path resolution
// ABOUTME: Color is disabled so handler output can be matched as plain text

package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(in))
		})
	}
}

func TestColorHandler_FormatsRecord(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo))
	logger.With("component", "mcp").WithGroup("call").Info("tools/call", "tool", "cmf.tx.search")
	logger.Debug("hidden")
	logger.Error("boom", "err", "bad")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INF tools/call component=mcp call.tool=cmf.tx.search")
	assert.Contains(t, lines[1], "ERR boom err=bad")
}

func TestGetConfigPath(t *testing.T) {
	t.Run("explicit", func(t *testing.T) {
		t.Setenv("CMF_CONFIG", "/etc/cmf.yaml")
		assert.Equal(t, "/etc/cmf.yaml", getConfigPath())
	})

	t.Run("xdg", func(t *testing.T) {
		t.Setenv("CMF_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		assert.Equal(t, filepath.Join("/tmp/xdg", "cmf", "gateway.yaml"), getConfigPath())
	})

	t.Run("home", func(t *testing.T) {
		t.Setenv("CMF_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/tmp/home")
		assert.Equal(t, filepath.Join("/tmp/home", ".config", "cmf", "gateway.yaml"), getConfigPath())
	})
}
