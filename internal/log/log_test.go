package log

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	ts := time.Date(2025, 12, 6, 10, 45, 0, 0, time.UTC)

	tests := []struct {
		name   string
		fields []any
		want   string
	}{
		{"no fields", nil, "2025-12-06T10:45:00 [WARN] [conflict] ambiguous\n"},
		{"pairs", []any{"operation", "add", "pairs", 2}, "2025-12-06T10:45:00 [WARN] [conflict] ambiguous operation=add pairs=2\n"},
		{"orphan key", []any{"operation"}, "2025-12-06T10:45:00 [WARN] [conflict] ambiguous operation=<missing>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, format(ts, LevelWarn, CatConflict, "ambiguous", tt.fields))
		})
	}
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("debug"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel("ERROR"))
	require.Equal(t, LevelInfo, ParseLevel("info"))
	require.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestInitWriter_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelWarn)
	t.Cleanup(func() { install(nil) })

	Debug(CatResolve, "hidden")
	Info(CatResolve, "hidden")
	Warn(CatResolve, "shown")
	ErrorErr(CatStore, "failed", errors.New("disk full"), "path", "x.db")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "[WARN] [resolve] shown")
	require.Contains(t, out, "[ERROR] [store] failed path=x.db error=disk full")

	SetMinLevel(LevelDebug)
	Debug(CatResolve, "now shown")
	require.Contains(t, buf.String(), "[DEBUG] [resolve] now shown")
}

func TestSetEnabled(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(func() { install(nil) })

	SetEnabled(false)
	Error(CatRegistry, "muted")
	require.Empty(t, buf.String())

	SetEnabled(true)
	Error(CatRegistry, "back")
	require.Contains(t, buf.String(), "back")
}

func TestUninitialisedIsSilent(t *testing.T) {
	install(nil)
	require.NotPanics(t, func() {
		Info(CatConfig, "nothing")
		SetMinLevel(LevelError)
		SetEnabled(true)
	})
	require.Nil(t, NewListener(context.Background()))
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cleanup, err := Init(path)
	require.NoError(t, err)

	Info(CatTable, "loaded", "operations", 2)
	cleanup()
	Info(CatTable, "after cleanup")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "\n"))
	require.Contains(t, string(data), "[INFO] [table] loaded operations=2")
}

func TestInit_BadPath(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "missing", "debug.log"))
	require.Error(t, err)
}

func TestListener(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(func() { install(nil) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener := NewListener(ctx)
	require.NotNil(t, listener)

	Warn(CatConflict, "ambiguous", "operation", "collide")

	ev, ok := listener.Next()
	require.True(t, ok)
	require.Contains(t, ev.Payload, "operation=collide")
	require.Equal(t, buf.String(), ev.Payload)
}
