// Package event defines the append-only audit events recorded around each
// marking transition.
package event

import "time"

// Type identifies the type of a marking event.
type Type string

// Marking lifecycle events.
const (
	// TypeAssignmentSubmitted records an assignment entering the pipeline.
	TypeAssignmentSubmitted Type = "assignment.submitted"
	// TypeStudentAnonymized records the one-way anonymization of a student id.
	TypeStudentAnonymized Type = "student.anonymized"
	// TypeFeedbackGenerated records validated feedback for an assignment.
	TypeFeedbackGenerated Type = "feedback.generated"
	// TypeGradeAssigned records the grade assigned to an assignment.
	TypeGradeAssigned Type = "grade.assigned"
	// TypeAssignmentFailed records a pipeline failure and the stage it hit.
	TypeAssignmentFailed Type = "assignment.failed"
)

// Event represents an immutable record in the marking audit journal.
type Event struct {
	// ID uniquely identifies this event.
	// Assigned by storage on append.
	ID string
	// AggregateID is the assignment this event belongs to.
	AggregateID string
	// Version is the event's position within the aggregate stream (starts at 1,
	// strictly increasing, gapless). Assigned by storage on append.
	Version uint64
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// PayloadJSON holds the event-specific payload as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is one of the known marking events.
func (t Type) IsValid() bool {
	switch t {
	case TypeAssignmentSubmitted, TypeStudentAnonymized, TypeFeedbackGenerated,
		TypeGradeAssigned, TypeAssignmentFailed:
		return true
	}
	return false
}

// Domain returns the domain prefix of the event type (e.g., "assignment").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
