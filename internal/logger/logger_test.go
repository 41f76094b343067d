package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-modbot/internal/config"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, LevelWarning, ParseLevel("WARNING"))
	assert.Equal(t, LevelWarning, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("FATAL"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLog(t)
	SetLevel(LevelWarning)

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warningf("warn %d", 3)
	Errorf("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARNING] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
}

func TestSetupCreatesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := &config.Config{}
	cfg.Logger.Directory = dir
	cfg.Logger.Level = "DEBUG"
	cfg.Logger.Rotation.MaxSize = 1

	prevOut, prevFlags := log.Writer(), log.Flags()
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetLevel(LevelInfo)
	})

	require.NoError(t, Setup(cfg))
	Debugf("hello from test")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "tg-modbot-")
}
