package worker

import (
	"fmt"

	"scout/internal/model"
)

// Instruction templates handed to the scoring function. Each demands strict
// JSON so the parse failure path stays unambiguous.
const (
	basicsInstructions = `You are screening a job listing against a candidate profile.
Rate how well the candidate meets the listing's hard requirements (skills,
experience level, location constraints) from 0 to 100.
Respond with strict JSON only: {"score": <0-100>, "reasons": ["..."]}`

	preferenceInstructions = `You are evaluating how well a job listing matches the candidate's
stated preferences (role type, industry, seniority, working style).
Rate the preference fit from 0 to 100.
Respond with strict JSON only: {"score": <0-100>, "reasons": ["..."]}`

	summaryInstructions = `Write a short summary of this job listing for the candidate: what the
role is, why it matched, and anything worth double-checking before applying.
Respond with strict JSON only: {"summary": "..."}`
)

// buildPrompt assembles the scoring input from the owner profile and the
// item under evaluation
func buildPrompt(profile string, item *model.Item) string {
	return fmt.Sprintf(
		"CANDIDATE PROFILE:\n%s\n\nJOB LISTING:\nTitle: %s\nCompany: %s\nLocation: %s\n\n%s",
		profile, item.Title, item.Company, item.Location, item.Description,
	)
}

// placeholderSummary is written when the preference stage stops an item
// short of the summary stage
func placeholderSummary(adjustedScore int) string {
	return fmt.Sprintf("Not summarized: adjusted score %d did not clear the preference threshold.", adjustedScore)
}
