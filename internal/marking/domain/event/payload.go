package event

import (
	"encoding/json"
	"fmt"
)

// AssignmentSubmittedPayload captures the payload for assignment.submitted
// events. It carries only the anonymized student identifier and a content
// hash; the raw student id never enters the journal.
type AssignmentSubmittedPayload struct {
	AnonymizedStudentID string `json:"anonymized_student_id"`
	ModuleCode          string `json:"module_code"`
	QuestionNumber      int    `json:"question_number"`
	ContentHash         string `json:"content_hash"`
}

// StudentAnonymizedPayload captures the payload for student.anonymized events.
// OriginalHash is a digest of the raw identifier, recorded so the mapping can
// be audited without storing the identifier itself.
type StudentAnonymizedPayload struct {
	OriginalHash string `json:"original_hash"`
	AnonymizedID string `json:"anonymized_id"`
}

// CriterionScore records the marks awarded against one rubric criterion.
type CriterionScore struct {
	CriterionNumber int     `json:"criterion_number"`
	CriterionText   string  `json:"criterion_text"`
	Score           float64 `json:"score"`
	MaxScore        float64 `json:"max_score"`
	Feedback        string  `json:"feedback"`
}

// FeedbackGeneratedPayload captures the payload for feedback.generated events.
type FeedbackGeneratedPayload struct {
	AssignmentID string           `json:"assignment_id"`
	Feedback     string           `json:"feedback"`
	Scores       []CriterionScore `json:"scores"`
}

// GradeAssignedPayload captures the payload for grade.assigned events.
type GradeAssignedPayload struct {
	AssignmentID string  `json:"assignment_id"`
	Grade        float64 `json:"grade"`
	MaxGrade     float64 `json:"max_grade"`
}

// AssignmentFailedPayload captures the payload for assignment.failed events.
// Stage names the pipeline step that failed (validation, anonymization,
// sanitization, transport, response_validation, storage).
type AssignmentFailedPayload struct {
	Reason string `json:"reason"`
	Stage  string `json:"stage"`
}

// payloadType maps each payload struct to its event type.
func payloadType(payload any) (Type, bool) {
	switch payload.(type) {
	case AssignmentSubmittedPayload, *AssignmentSubmittedPayload:
		return TypeAssignmentSubmitted, true
	case StudentAnonymizedPayload, *StudentAnonymizedPayload:
		return TypeStudentAnonymized, true
	case FeedbackGeneratedPayload, *FeedbackGeneratedPayload:
		return TypeFeedbackGenerated, true
	case GradeAssignedPayload, *GradeAssignedPayload:
		return TypeGradeAssigned, true
	case AssignmentFailedPayload, *AssignmentFailedPayload:
		return TypeAssignmentFailed, true
	}
	return "", false
}

// New builds an event for the given aggregate from a typed payload. The event
// type is derived from the payload's concrete type so a payload can never be
// filed under the wrong variant.
func New(aggregateID string, payload any) (Event, error) {
	eventType, ok := payloadType(payload)
	if !ok {
		return Event{}, fmt.Errorf("unknown event payload type %T", payload)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateID: aggregateID,
		Type:        eventType,
		PayloadJSON: encoded,
	}, nil
}

// DecodePayload unmarshals the event's payload into its typed form, selected
// by the event type.
func DecodePayload(evt Event) (any, error) {
	var (
		payload any
		err     error
	)
	switch evt.Type {
	case TypeAssignmentSubmitted:
		var p AssignmentSubmittedPayload
		err = json.Unmarshal(evt.PayloadJSON, &p)
		payload = p
	case TypeStudentAnonymized:
		var p StudentAnonymizedPayload
		err = json.Unmarshal(evt.PayloadJSON, &p)
		payload = p
	case TypeFeedbackGenerated:
		var p FeedbackGeneratedPayload
		err = json.Unmarshal(evt.PayloadJSON, &p)
		payload = p
	case TypeGradeAssigned:
		var p GradeAssignedPayload
		err = json.Unmarshal(evt.PayloadJSON, &p)
		payload = p
	case TypeAssignmentFailed:
		var p AssignmentFailedPayload
		err = json.Unmarshal(evt.PayloadJSON, &p)
		payload = p
	default:
		return nil, fmt.Errorf("unknown event type %q", evt.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", evt.Type, err)
	}
	return payload, nil
}
