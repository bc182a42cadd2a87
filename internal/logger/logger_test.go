package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHonoursLevelAndFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_FILE", "")

	l := New()
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	_, isText := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}

func TestNewDefaultsToInfoJSON(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_FILE", "")

	l := New()
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	_, isJSON := l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestNewMirrorsToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_FILE", path)

	l := New()
	l.Info("hello file")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello file")
}
