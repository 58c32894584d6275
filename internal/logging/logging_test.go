package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		wantLevel zerolog.Level
	}{
		{"default info level", 0, zerolog.InfoLevel},
		{"debug level", 1, zerolog.DebugLevel},
		{"trace level", 2, zerolog.TraceLevel},
		{"high verbosity stays trace", 5, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Setup(tt.verbosity, &buf, true)
			assert.Equal(t, tt.wantLevel, zerolog.GlobalLevel())
		})
	}
}

func TestSetupDefaultPrintsMessagesOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(0, &buf, true)

	logger.Info().Msg("-- README.md")
	logger.Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, "-- README.md")
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "INF")

	buf.Reset()
	component := GetLogger("walker")
	component.Info().Msg("-- a.txt")
	assert.Contains(t, buf.String(), "-- a.txt")
	assert.NotContains(t, buf.String(), "component")
}

func TestGetLogger(t *testing.T) {
	var buf bytes.Buffer
	Setup(1, &buf, true)

	logger := GetLogger("walker")
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), "component=walker")
}
