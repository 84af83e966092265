package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLogger(t *testing.T) {
	level := "info"
	log := NewLogrus(level, os.Stdout)

	assert.Equal(t, log.level, level)
	assert.Equal(t, "text", log.format)
}

func TestGetLogger(t *testing.T) {
	log := NewLogrus("debug", os.Stdout)
	logger := log.Get("Testing")

	assert.Equal(t, logger.Logger.Out, os.Stdout)
	assert.Equal(t, logrus.DebugLevel, logger.Logger.GetLevel())
	assert.Equal(t, "Testing", logger.Data["Context"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	logger := NewLogrus("chatty", os.Stdout).Get("x")
	assert.Equal(t, logrus.InfoLevel, logger.Logger.GetLevel())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrus("info", &buf).WithFormat("JSON").Get("bridge")
	logger.WithField("sensors", 3).Info("poll done")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "poll done", entry["msg"])
	assert.Equal(t, "bridge", entry["Context"])
	assert.EqualValues(t, 3, entry["sensors"])
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Info("nothing") })
}
