package assignment

import "strings"

// RubricCriterion is a numbered sub-item parsed out of free-text rubric.
// Criteria are derived on demand and never persisted independently.
type RubricCriterion struct {
	Number      int     `json:"number"`
	Description string  `json:"description"`
	MaxMarks    float64 `json:"max_marks,omitempty"`
}

// ParseRubricCriteria splits the rubric into structured criteria. A line that
// starts with a digit, "•", "-", or "*" begins a new criterion; numbering is
// assigned sequentially by the parser, not parsed from the text. When no line
// matches, the entire rubric becomes a single criterion numbered 1.
//
// This is best-effort structuring of free text, not a grammar; point values
// are not extracted.
func (a *Assignment) ParseRubricCriteria() []RubricCriterion {
	var criteria []RubricCriterion
	num := 0

	for _, line := range strings.Split(a.Rubric, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if startsCriterion(trimmed) {
			num++
			criteria = append(criteria, RubricCriterion{
				Number:      num,
				Description: trimmed,
			})
		}
	}

	if len(criteria) == 0 {
		criteria = append(criteria, RubricCriterion{
			Number:      1,
			Description: a.Rubric,
		})
	}

	return criteria
}

func startsCriterion(line string) bool {
	if line == "" {
		return false
	}
	if line[0] >= '0' && line[0] <= '9' {
		return true
	}
	return strings.HasPrefix(line, "•") ||
		strings.HasPrefix(line, "-") ||
		strings.HasPrefix(line, "*")
}
