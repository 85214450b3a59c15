package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageTransitions(t *testing.T) {
	tests := []struct {
		from Stage
		to   Stage
		ok   bool
	}{
		{StageRaw, StageBasicsScored, true},
		{StageBasicsScored, StagePreferenceStop, true},
		{StageBasicsScored, StagePreferenceForward, true},
		{StagePreferenceForward, StageSummaryScored, true},
		{StageRaw, StageSummaryScored, false},
		{StageRaw, StagePreferenceForward, false},
		{StageBasicsScored, StageRaw, false},
		{StagePreferenceStop, StageSummaryScored, false},
		{StageSummaryScored, StageRaw, false},
		{StageSummaryScored, StageSummaryScored, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStageTerminal(t *testing.T) {
	assert.True(t, StagePreferenceStop.Terminal())
	assert.True(t, StageSummaryScored.Terminal())
	assert.False(t, StageRaw.Terminal())
	assert.False(t, StageBasicsScored.Terminal())
	assert.False(t, StagePreferenceForward.Terminal())
	assert.False(t, Stage("bogus").Terminal())
}

func TestCheckTransition(t *testing.T) {
	assert.NoError(t, CheckTransition(StageRaw, StageBasicsScored))
	assert.Error(t, CheckTransition(StageRaw, StageSummaryScored))
	assert.Error(t, CheckTransition(Stage("bogus"), StageBasicsScored))
	assert.Error(t, CheckTransition(StageRaw, Stage("bogus")))
}

func TestStageValid(t *testing.T) {
	for _, s := range []Stage{StageRaw, StageBasicsScored, StagePreferenceStop, StagePreferenceForward, StageSummaryScored} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Stage("").Valid())
	assert.False(t, Stage("done").Valid())
}
