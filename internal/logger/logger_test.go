package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	testCases := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			New(Config{Level: tc.level, Output: &bytes.Buffer{}})
			assert.Equal(t, tc.want, zerolog.GlobalLevel())
		})
	}
}

func TestNew_WritesJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var buf bytes.Buffer
	l := New(Config{Level: "info", Output: &buf})

	l.Info().Str("component", "test").Msg("hello")
	l.Debug().Msg("hidden")

	assert.Contains(t, buf.String(), `"component":"test"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_Pretty(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var buf bytes.Buffer
	l := New(Config{Level: "info", Pretty: true, Output: &buf})

	l.Info().Msg("pretty message")

	assert.Contains(t, buf.String(), "pretty message")
	assert.NotContains(t, buf.String(), `"message"`)
}
