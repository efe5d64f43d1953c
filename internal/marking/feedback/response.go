package feedback

import (
	"fmt"
	"strings"

	"github.com/louisbranch/tutormark/internal/marking/domain/event"
	apperrors "github.com/louisbranch/tutormark/internal/platform/errors"
)

// Response is validated, structured feedback for one assignment.
type Response struct {
	AssignmentID string
	Feedback     string
	Scores       []event.CriterionScore
	OverallGrade float64
	Suggestions  []string
	Strengths    []string
	// Placeholder is set when the response was generated locally instead of
	// by the jailed model.
	Placeholder bool
}

// suggestion and strength lead-ins scanned for in feedback text.
var (
	suggestionLeadIns = []string{"Consider", "Try", "You could", "Suggestion:"}
	strengthLeadIns   = []string{"Good", "Excellent", "Well done", "Strong", "Strength:"}
)

// ExtractSuggestions collects feedback lines that open with a suggestion
// lead-in.
func ExtractSuggestions(feedback string) []string {
	return extractLines(feedback, suggestionLeadIns)
}

// ExtractStrengths collects feedback lines that open with a praise lead-in.
func ExtractStrengths(feedback string) []string {
	return extractLines(feedback, strengthLeadIns)
}

func extractLines(feedback string, leadIns []string) []string {
	var out []string
	for _, line := range strings.Split(feedback, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, leadIn := range leadIns {
			if strings.HasPrefix(trimmed, leadIn) {
				out = append(out, trimmed)
				break
			}
		}
	}
	return out
}

// Validate checks that a response meets the minimum quality bar: non-empty
// feedback of at least 50 characters, at least one criterion score, and a
// grade within [0, 100].
func (r Response) Validate() error {
	if strings.TrimSpace(r.Feedback) == "" {
		return apperrors.New(apperrors.CodeFeedbackEmpty, "feedback is empty")
	}
	if len(r.Feedback) < 50 {
		return apperrors.New(apperrors.CodeFeedbackTooShort, "feedback is too short")
	}
	if len(r.Scores) == 0 {
		return apperrors.New(apperrors.CodeFeedbackNoScores, "no criterion scores provided")
	}
	if r.OverallGrade < 0 || r.OverallGrade > 100 {
		return apperrors.New(apperrors.CodeFeedbackGradeOutOfRange,
			fmt.Sprintf("overall grade out of range: %g", r.OverallGrade))
	}
	return nil
}
