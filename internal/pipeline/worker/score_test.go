package worker

import (
	"testing"

	"scout/internal/model"
	"scout/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustScore(t *testing.T) {
	tests := []struct {
		original   int
		preference int
		want       int
	}{
		{80, 100, 80},
		{80, 60, 60},
		{80, 0, 30},
		{10, 0, 0},
		{100, 100, 100},
		{95, 91, 91},
		{0, 100, 0},
		{100, 0, 50},
	}

	for _, tt := range tests {
		got := AdjustScore(tt.original, tt.preference)
		assert.Equal(t, tt.want, got, "AdjustScore(%d, %d)", tt.original, tt.preference)
	}
}

func TestParseScore(t *testing.T) {
	result, err := parseScore(`{"score": 72, "reasons": ["strong match"]}`)
	require.NoError(t, err)
	assert.Equal(t, 72, result.Score)
	assert.Equal(t, []string{"strong match"}, result.Reasons)

	_, err = parseScore("I think this candidate is great")
	require.Error(t, err)
	assert.True(t, pipeline.IsPermanent(err), "unparseable output must fail the item permanently")
}

func TestParseSummary(t *testing.T) {
	result, err := parseSummary(`{"summary": "A solid backend role."}`)
	require.NoError(t, err)
	assert.Equal(t, "A solid backend role.", result.Summary)

	_, err = parseSummary(`{"summary": ""}`)
	require.Error(t, err)
	assert.True(t, pipeline.IsPermanent(err))

	_, err = parseSummary("not json")
	require.Error(t, err)
	assert.True(t, pipeline.IsPermanent(err))
}

func TestCheckStage(t *testing.T) {
	fresh := &model.Item{ID: "a", Stage: model.StageRaw}
	assert.NoError(t, checkStage(fresh, model.StageBasicsScored))

	// Landing on the target again is a duplicate delivery, not an error
	duplicate := &model.Item{ID: "a", Stage: model.StageBasicsScored}
	assert.NoError(t, checkStage(duplicate, model.StageBasicsScored))

	// A terminal item cannot be pushed back through an earlier stage
	done := &model.Item{ID: "a", Stage: model.StageSummaryScored}
	err := checkStage(done, model.StageBasicsScored)
	require.Error(t, err)
	assert.True(t, pipeline.IsPermanent(err))

	// Raw items cannot jump the basics stage
	err = checkStage(fresh, model.StagePreferenceStop, model.StagePreferenceForward)
	require.Error(t, err)
	assert.True(t, pipeline.IsPermanent(err))
}
