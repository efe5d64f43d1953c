// Package assignment models a tutor-marked assignment submission and its
// grading lifecycle.
package assignment

import (
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/tutormark/internal/platform/errors"
	"github.com/louisbranch/tutormark/internal/platform/id"
)

// MaxContentLength bounds submission content at 100 KiB.
const MaxContentLength = 100 * 1024

// Status describes where an assignment sits in the marking pipeline.
type Status string

const (
	// StatusSubmitted indicates the assignment has been received but not processed.
	StatusSubmitted Status = "submitted"
	// StatusAnonymizing indicates the student identifier is being anonymized.
	StatusAnonymizing Status = "anonymizing"
	// StatusProcessing indicates the assignment is with the jailed model.
	StatusProcessing Status = "processing"
	// StatusFeedbackGenerated indicates feedback has been produced and validated.
	StatusFeedbackGenerated Status = "feedback_generated"
	// StatusGraded indicates a grade has been assigned. Terminal.
	StatusGraded Status = "graded"
	// StatusFailed indicates processing failed. Terminal.
	StatusFailed Status = "failed"
)

// Validation errors returned by Validate, first violation wins.
var (
	ErrEmptyStudentID    = apperrors.New(apperrors.CodeAssignmentEmptyStudentID, "student id cannot be empty")
	ErrEmptyModuleCode   = apperrors.New(apperrors.CodeAssignmentEmptyModuleCode, "module code cannot be empty")
	ErrInvalidQuestion   = apperrors.New(apperrors.CodeAssignmentInvalidQuestion, "question number must be greater than 0")
	ErrEmptyContent      = apperrors.New(apperrors.CodeAssignmentEmptyContent, "content cannot be empty")
	ErrEmptyRubric       = apperrors.New(apperrors.CodeAssignmentEmptyRubric, "rubric cannot be empty")
)

// Assignment is a single student submission for one question, tracked through
// the grading lifecycle. Assignments are never deleted; their history lives in
// the event journal.
type Assignment struct {
	// ID uniquely identifies this assignment.
	ID string
	// StudentID is the raw student identifier. It must never cross the jail
	// boundary; the security gate anonymizes it before any model exchange.
	StudentID string
	// ModuleCode is the course module code (e.g., "TM112", "M250").
	ModuleCode string
	// QuestionNumber is the 1-based question number within the assignment.
	QuestionNumber int
	// Content is the student's answer.
	Content string
	// Rubric is the marking criteria text for this question.
	Rubric string
	// Status is the current pipeline status.
	Status Status
	// AnonymizedID is the one-way hash of StudentID, set during anonymization.
	AnonymizedID string
}

// New creates an assignment in the submitted state with a freshly minted id.
func New(studentID, moduleCode string, questionNumber int, content, rubric string) (*Assignment, error) {
	return newWithIDGenerator(studentID, moduleCode, questionNumber, content, rubric, id.NewID)
}

func newWithIDGenerator(studentID, moduleCode string, questionNumber int, content, rubric string, idGenerator func() (string, error)) (*Assignment, error) {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	assignmentID, err := idGenerator()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "generate assignment id", err)
	}
	return &Assignment{
		ID:             assignmentID,
		StudentID:      studentID,
		ModuleCode:     moduleCode,
		QuestionNumber: questionNumber,
		Content:        content,
		Rubric:         rubric,
		Status:         StatusSubmitted,
	}, nil
}

// Validate checks the assignment fields and returns the first violation found:
// student id, module code presence, module code shape, question number,
// content presence, content length, rubric presence.
func (a *Assignment) Validate() error {
	if strings.TrimSpace(a.StudentID) == "" {
		return ErrEmptyStudentID
	}
	if strings.TrimSpace(a.ModuleCode) == "" {
		return ErrEmptyModuleCode
	}
	if !IsValidModuleCode(a.ModuleCode) {
		return apperrors.WithMetadata(apperrors.CodeAssignmentInvalidModuleCode,
			"invalid module code format: "+a.ModuleCode,
			map[string]string{"module_code": a.ModuleCode})
	}
	if a.QuestionNumber <= 0 {
		return ErrInvalidQuestion
	}
	if strings.TrimSpace(a.Content) == "" {
		return ErrEmptyContent
	}
	if len(a.Content) > MaxContentLength {
		return apperrors.WithMetadata(apperrors.CodeAssignmentContentTooLong,
			"content exceeds maximum length",
			map[string]string{
				"max":    strconv.Itoa(MaxContentLength),
				"actual": strconv.Itoa(len(a.Content)),
			})
	}
	if strings.TrimSpace(a.Rubric) == "" {
		return ErrEmptyRubric
	}
	return nil
}

// IsValidModuleCode reports whether code follows the module code shape:
// trimmed and upper-cased, 4-7 characters, a leading run of letters followed
// by a trailing run of digits, both runs non-empty, nothing else.
func IsValidModuleCode(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 4 || len(code) > 7 {
		return false
	}

	i := 0
	for i < len(code) && code[i] >= 'A' && code[i] <= 'Z' {
		i++
	}
	if i == 0 {
		return false
	}

	j := i
	for j < len(code) && code[j] >= '0' && code[j] <= '9' {
		j++
	}
	return j > i && j == len(code)
}

// SetStatus records a new pipeline status. Transitions are caller-driven; the
// orchestrator is responsible for respecting the lifecycle graph (see
// CanTransition).
func (a *Assignment) SetStatus(status Status) {
	a.Status = status
}

// SetAnonymizedID records the one-way hash of the student identifier.
func (a *Assignment) SetAnonymizedID(anonymizedID string) {
	a.AnonymizedID = anonymizedID
}

// Transition moves the assignment to a new status, enforcing the lifecycle
// graph.
func (a *Assignment) Transition(to Status) error {
	if !CanTransition(a.Status, to) {
		return apperrors.WithMetadata(apperrors.CodeAssignmentInvalidTransition,
			"cannot transition from "+string(a.Status)+" to "+string(to),
			map[string]string{"from": string(a.Status), "to": string(to)})
	}
	a.Status = to
	return nil
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusGraded || s == StatusFailed
}

// CanTransition reports whether the lifecycle graph permits moving from one
// status to another. Failed is reachable from any non-terminal status.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	switch from {
	case StatusSubmitted:
		return to == StatusAnonymizing
	case StatusAnonymizing:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusFeedbackGenerated
	case StatusFeedbackGenerated:
		return to == StatusGraded
	default:
		return false
	}
}

// SanitizedContent returns the content trimmed of surrounding whitespace.
// Real PII removal happens in the security gate; this only normalizes shape
// before that pass.
func (a *Assignment) SanitizedContent() string {
	return strings.TrimSpace(a.Content)
}
