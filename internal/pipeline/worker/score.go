package worker

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"scout/internal/model"
	"scout/internal/pipeline"
	"scout/internal/retry"
)

// AdjustScore folds the preference score into the basics score:
// adjusted = clamp(original - (100-preference)/2, 0, 100).
// A perfect preference leaves the original untouched; total mismatch costs
// fifty points.
func AdjustScore(originalScore, preferenceScore int) int {
	adjusted := float64(originalScore) - float64(100-preferenceScore)/2
	rounded := int(math.Round(adjusted))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

// scoreResult is the JSON shape the basics and preference stages expect the
// scoring function to emit
type scoreResult struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// summaryResult is the JSON shape the summary stage expects
type summaryResult struct {
	Summary string `json:"summary"`
}

// parseScore treats unparseable output as a permanent data-quality failure
// for the item
func parseScore(text string) (scoreResult, error) {
	var out scoreResult
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return scoreResult{}, pipeline.Permanent("unparseable scoring output: %v", err)
	}
	return out, nil
}

func parseSummary(text string) (summaryResult, error) {
	var out summaryResult
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return summaryResult{}, pipeline.Permanent("unparseable summary output: %v", err)
	}
	if out.Summary == "" {
		return summaryResult{}, pipeline.Permanent("summary output missing summary field")
	}
	return out, nil
}

// loadProfile fetches the owner's profile text with backoff. A profile that
// cannot be loaded is missing upstream context, which fails the item.
func loadProfile(ctx context.Context, profiles pipeline.Profiles, ownerID string) (string, error) {
	cfg := retry.Config{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Factor:       2,
	}

	var profile string
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		text, err := profiles.GetProfile(ctx, ownerID)
		if err != nil {
			return err
		}
		profile = text
		return nil
	})
	if err != nil {
		return "", pipeline.Permanent("missing profile for owner %s: %v", ownerID, err)
	}
	if profile == "" {
		return "", pipeline.Permanent("empty profile for owner %s", ownerID)
	}

	return profile, nil
}

// checkStage validates the item's position in the stage machine. Landing on
// the target stage again is a duplicate delivery and fine; anything else
// that cannot transition is a permanent failure.
func checkStage(item *model.Item, targets ...model.Stage) error {
	for _, target := range targets {
		if item.Stage == target {
			return nil
		}
		if item.Stage.CanTransition(target) {
			return nil
		}
	}
	return pipeline.Permanent("item %s at stage %s cannot reach %v", item.ID, item.Stage, targets)
}
