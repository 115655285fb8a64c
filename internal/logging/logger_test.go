package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReplaceAndWithContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Replace(zap.New(core))

	WithContext(zap.String("agent", "Backend Developer")).Info("build started")
	S().Debugw("dropped below level")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "build started", entries[0].Message)
	assert.Equal(t, "Backend Developer", entries[0].ContextMap()["agent"])

	Sync()
}
