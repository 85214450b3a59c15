package model

import "fmt"

// Stage represents how far an item has moved through the scoring pipeline
type Stage string

const (
	StageRaw               Stage = "raw"
	StageBasicsScored      Stage = "basics_scored"
	StagePreferenceStop    Stage = "preference_scored_stop"
	StagePreferenceForward Stage = "preference_scored_forward"
	StageSummaryScored     Stage = "summary_scored"
)

// stageTransitions is the only set of legal stage moves. Anything else is a
// data-integrity failure for that item.
var stageTransitions = map[Stage][]Stage{
	StageRaw:               {StageBasicsScored},
	StageBasicsScored:      {StagePreferenceStop, StagePreferenceForward},
	StagePreferenceStop:    {},
	StagePreferenceForward: {StageSummaryScored},
	StageSummaryScored:     {},
}

// Valid reports whether s is a known pipeline stage
func (s Stage) Valid() bool {
	_, ok := stageTransitions[s]
	return ok
}

// Terminal reports whether an item at this stage is done with the pipeline
func (s Stage) Terminal() bool {
	next, ok := stageTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether moving from s to next is a legal stage move
func (s Stage) CanTransition(next Stage) bool {
	for _, allowed := range stageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition returns a descriptive error for illegal stage moves
func CheckTransition(from, to Stage) error {
	if !from.Valid() {
		return fmt.Errorf("unknown stage %q", from)
	}
	if !to.Valid() {
		return fmt.Errorf("unknown stage %q", to)
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal stage transition %s -> %s", from, to)
	}
	return nil
}
