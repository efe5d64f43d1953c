// Package feedback orchestrates the marking pipeline: anonymization,
// sanitization, the jail exchange, response validation, and the audit trail.
package feedback

import (
	"time"

	"github.com/louisbranch/tutormark/internal/marking/domain/assignment"
	"github.com/louisbranch/tutormark/internal/marking/security"
	apperrors "github.com/louisbranch/tutormark/internal/platform/errors"
	"github.com/louisbranch/tutormark/internal/platform/timeouts"
)

// Request is the sanitized unit of work sent toward the jail. Building one
// runs the security gate, so a Request never holds raw PII.
type Request struct {
	AssignmentID string
	Content      string
	Rubric       string
	Criteria     []assignment.RubricCriterion
	Timeout      time.Duration
}

// NewRequest sanitizes an assignment's content and parses its rubric. It
// fails when content still trips the gate after sanitization.
func NewRequest(a *assignment.Assignment, gate *security.Gate) (Request, error) {
	sanitized := gate.Sanitize(a.SanitizedContent())
	if err := gate.ValidateOutput(sanitized); err != nil {
		return Request{}, apperrors.Wrap(apperrors.CodeSecurityPIILeak,
			"content still contains PII after sanitization", err)
	}

	return Request{
		AssignmentID: a.ID,
		Content:      sanitized,
		Rubric:       a.Rubric,
		Criteria:     a.ParseRubricCriteria(),
		Timeout:      timeouts.FeedbackExchange,
	}, nil
}

// WithTimeout overrides the jail exchange deadline.
func (r Request) WithTimeout(timeout time.Duration) Request {
	r.Timeout = timeout
	return r
}
