package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/jacobB1290/JwebAPP-sub000/internal/config"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "journal.log")
	logger, closer, err := New(config.LogConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	logger.WithFields(logrus.Fields{"component": "queue", "job": "j1"}).Debug("job complete")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(data, &line))
	require.Equal(t, "queue", line["component"])
	require.Equal(t, "job complete", line["msg"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "chatty"})
	require.Error(t, err)
}

func TestNewDefaultsToStderr(t *testing.T) {
	logger, closer, err := New(config.LogConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)
	require.Equal(t, logrus.WarnLevel, logger.GetLevel())
	require.Equal(t, os.Stderr, logger.Out)
	require.NoError(t, closer.Close())
}
