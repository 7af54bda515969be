package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("debug", "json", &buf)

	log.WithField("policy", "login").Warn("Rate limit exceeded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "login", entry["policy"])
	assert.Equal(t, "Rate limit exceeded", entry["msg"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", "text", &buf)

	log.Info("hello")

	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNew_LevelParsing(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("DEBUG", "json").GetLevel())
	assert.Equal(t, logrus.ErrorLevel, New("error", "json").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("verbose", "json").GetLevel())
}
