package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureLogger(t *testing.T) {
	logger, logs := NewCaptureLogger()
	logger.Debug("registered formula", "field", "fldTotal")
	logger.Warn("formula would create a cycle", "field", "fldX")

	recs := logs.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "DEBUG", recs[0].Level)
	assert.Equal(t, "fldTotal", recs[0].Attrs["field"])

	rec, ok := logs.Find("formula would create a cycle")
	require.True(t, ok)
	assert.Equal(t, "WARN", rec.Level)
	assert.NotContains(t, rec.Attrs, "time")

	_, ok = logs.Find("nope")
	assert.False(t, ok)
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)
	logger.Info("visible with -v", "k", 1)
}
