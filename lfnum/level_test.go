package lfnum_test

import (
	"testing"

	"github.com/pydantic/logfire-go/lfnum"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelRoundTrip(t *testing.T) {
	levels := []lfnum.Level{
		lfnum.TraceLevel,
		lfnum.DebugLevel,
		lfnum.InfoLevel,
		lfnum.NoticeLevel,
		lfnum.WarnLevel,
		lfnum.ErrorLevel,
		lfnum.CriticalLevel,
	}
	for _, level := range levels {
		back, err := lfnum.LevelString(level.String())
		require.NoErrorf(t, err, "parse %s", level)
		assert.Equalf(t, level, back, "round trip %s", level)
	}
}

func TestLevelNames(t *testing.T) {
	assert.Equal(t, "warning", lfnum.WarnLevel.String())
	assert.Equal(t, "critical", lfnum.CriticalLevel.String())
	assert.Equal(t, "Level(3)", lfnum.Level(3).String())
}

func TestLevelStringInvalid(t *testing.T) {
	_, err := lfnum.LevelString("noise")
	assert.Error(t, err)
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, lfnum.TraceLevel < lfnum.DebugLevel)
	assert.True(t, lfnum.InfoLevel < lfnum.NoticeLevel)
	assert.True(t, lfnum.NoticeLevel < lfnum.WarnLevel)
	assert.True(t, lfnum.ErrorLevel < lfnum.CriticalLevel)
	assert.Equal(t, lfnum.MaxLevel, lfnum.CriticalLevel)
}
