package logging_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/ndewijer/portfolio-valuation-backend/internal/logging"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, logging.ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, logging.ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, logging.ParseLevel("verbose"))
}

func TestNewWithOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithOutput("warn", &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("ticker", "AAPL").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"ticker":"AAPL"`)
	assert.Contains(t, out, `"level":"warn"`)
}
