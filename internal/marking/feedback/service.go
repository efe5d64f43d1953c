package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/tutormark/internal/marking/domain/assignment"
	"github.com/louisbranch/tutormark/internal/marking/domain/event"
	"github.com/louisbranch/tutormark/internal/marking/jail"
	"github.com/louisbranch/tutormark/internal/marking/security"
	"github.com/louisbranch/tutormark/internal/marking/storage"
	apperrors "github.com/louisbranch/tutormark/internal/platform/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("tutormark/feedback")

// Pipeline stages recorded on failure events.
const (
	StageValidation         = "validation"
	StageAnonymization      = "anonymization"
	StageSanitization       = "sanitization"
	StageGeneration         = "generation"
	StageOutputValidation   = "output_validation"
	StageFeedbackValidation = "feedback_validation"
	StageJournal            = "journal"
)

// Exchanger performs one request/response round trip with the jailed
// process. *jail.Client satisfies it.
type Exchanger interface {
	Exchange(ctx context.Context, msg jail.Message) (jail.Message, error)
}

// Service coordinates feedback generation for assignments. Every pipeline
// step is journaled; the raw student identifier never reaches the journal or
// the jail.
type Service struct {
	gate         *security.Gate
	store        storage.EventStore
	jail         Exchanger
	salt         string
	timeout      time.Duration
	newRequestID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithJail connects the service to a jailed process. Without one the service
// produces deterministic placeholder feedback.
func WithJail(exchanger Exchanger) Option {
	return func(s *Service) {
		s.jail = exchanger
	}
}

// WithSalt sets the anonymization salt.
func WithSalt(salt string) Option {
	return func(s *Service) {
		s.salt = salt
	}
}

// WithTimeout overrides the default jail exchange deadline for every request.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewService builds a feedback service over the given gate and journal.
func NewService(gate *security.Gate, store storage.EventStore, opts ...Option) *Service {
	s := &Service{
		gate:         gate,
		store:        store,
		newRequestID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// GenerateFeedback runs the full marking pipeline for one assignment:
// validation, anonymization, sanitization, the jail exchange, dual output
// validation, and quality checks. Each step appends its audit event; a
// failure at any stage appends a failure event naming that stage.
func (s *Service) GenerateFeedback(ctx context.Context, a *assignment.Assignment) (Response, error) {
	if a == nil {
		return Response{}, fmt.Errorf("assignment is required")
	}

	ctx, span := tracer.Start(ctx, "feedback.generate", trace.WithAttributes(
		attribute.String("assignment.id", a.ID),
		attribute.String("assignment.module_code", a.ModuleCode),
		attribute.Int("assignment.question_number", a.QuestionNumber),
	))
	defer span.End()

	resp, err := s.pipeline(ctx, a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "feedback pipeline failed")
	}
	return resp, err
}

// pipeline runs the journaled marking steps for one validated-or-rejected
// assignment.
func (s *Service) pipeline(ctx context.Context, a *assignment.Assignment) (Response, error) {
	if err := a.Validate(); err != nil {
		return s.fail(ctx, a, StageValidation, err)
	}

	// Anonymize the student identifier before anything leaves the domain.
	a.SetStatus(assignment.StatusAnonymizing)
	anonymized, err := s.gate.AnonymizeSalted(a.StudentID, s.salt)
	if err != nil {
		return s.fail(ctx, a, StageAnonymization, err)
	}
	a.SetAnonymizedID(anonymized.Anonymized)

	unsalted, err := s.gate.Anonymize(a.StudentID)
	if err != nil {
		return s.fail(ctx, a, StageAnonymization, err)
	}
	if err := s.append(ctx, a.ID, event.StudentAnonymizedPayload{
		OriginalHash: unsalted.Anonymized,
		AnonymizedID: anonymized.Anonymized,
	}); err != nil {
		return s.fail(ctx, a, StageJournal, err)
	}

	req, err := NewRequest(a, s.gate)
	if err != nil {
		return s.fail(ctx, a, StageSanitization, err)
	}
	if s.timeout > 0 {
		req = req.WithTimeout(s.timeout)
	}
	if err := s.append(ctx, a.ID, event.AssignmentSubmittedPayload{
		AnonymizedStudentID: a.AnonymizedID,
		ModuleCode:          a.ModuleCode,
		QuestionNumber:      a.QuestionNumber,
		ContentHash:         s.gate.HashContent(req.Content),
	}); err != nil {
		return s.fail(ctx, a, StageJournal, err)
	}

	a.SetStatus(assignment.StatusProcessing)
	resp, err := s.generate(ctx, req)
	if err != nil {
		return s.fail(ctx, a, StageGeneration, err)
	}

	// The gate runs again on the way back in. A response that leaks PII is
	// discarded wholesale.
	if err := s.gate.ValidateOutput(resp.Feedback); err != nil {
		return s.fail(ctx, a, StageOutputValidation, err)
	}
	if err := resp.Validate(); err != nil {
		return s.fail(ctx, a, StageFeedbackValidation, err)
	}

	a.SetStatus(assignment.StatusFeedbackGenerated)
	if err := s.append(ctx, a.ID, event.FeedbackGeneratedPayload{
		AssignmentID: a.ID,
		Feedback:     resp.Feedback,
		Scores:       resp.Scores,
	}); err != nil {
		return s.fail(ctx, a, StageJournal, err)
	}

	if err := s.append(ctx, a.ID, event.GradeAssignedPayload{
		AssignmentID: a.ID,
		Grade:        resp.OverallGrade,
		MaxGrade:     100,
	}); err != nil {
		return s.fail(ctx, a, StageJournal, err)
	}
	a.SetStatus(assignment.StatusGraded)

	return resp, nil
}

// generate performs the jail exchange, or builds placeholder feedback when no
// jail is connected.
func (s *Service) generate(ctx context.Context, req Request) (Response, error) {
	if s.jail == nil {
		return placeholderResponse(req), nil
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	requestID := s.newRequestID()
	ctx, span := tracer.Start(ctx, "jail.exchange", trace.WithAttributes(
		attribute.String("jail.request_id", requestID),
	))
	defer span.End()

	reply, err := s.jail.Exchange(ctx, jail.NewFeedbackRequest(jail.FeedbackRequest{
		RequestID: requestID,
		Content:   req.Content,
		Rubric:    req.Rubric,
		Criteria:  req.Criteria,
	}))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "jail exchange failed")
		return Response{}, err
	}
	if reply.Kind != jail.KindFeedbackResponse {
		return Response{}, apperrors.New(apperrors.CodeJailInvalidMessage,
			"unexpected "+string(reply.Kind)+" reply to feedback request")
	}

	return Response{
		AssignmentID: req.AssignmentID,
		Feedback:     reply.FeedbackResponse.Feedback,
		Scores:       reply.FeedbackResponse.Scores,
		OverallGrade: reply.FeedbackResponse.OverallGrade,
		Suggestions:  ExtractSuggestions(reply.FeedbackResponse.Feedback),
		Strengths:    ExtractStrengths(reply.FeedbackResponse.Feedback),
	}, nil
}

// placeholderResponse produces deterministic rubric-aligned feedback so the
// pipeline stays exercisable without a model.
func placeholderResponse(req Request) Response {
	scores := make([]event.CriterionScore, 0, len(req.Criteria))
	total := 0.0
	for _, criterion := range req.Criteria {
		maxScore := criterion.MaxMarks
		if maxScore == 0 {
			maxScore = 100
		}
		score := 0.7 * maxScore
		scores = append(scores, event.CriterionScore{
			CriterionNumber: criterion.Number,
			CriterionText:   criterion.Description,
			Score:           score,
			MaxScore:        maxScore,
			Feedback:        fmt.Sprintf("Good attempt at criterion %d", criterion.Number),
		})
		total += (score / maxScore) * 100
	}

	grade := 70.0
	if len(scores) > 0 {
		grade = total / float64(len(scores))
	}

	feedback := "This is placeholder feedback. Your answer shows good understanding.\n" +
		"Consider providing more examples.\n" +
		"Good coverage of the core concepts."
	return Response{
		AssignmentID: req.AssignmentID,
		Feedback:     feedback,
		Scores:       scores,
		OverallGrade: grade,
		Suggestions:  ExtractSuggestions(feedback),
		Strengths:    ExtractStrengths(feedback),
		Placeholder:  true,
	}
}

func (s *Service) append(ctx context.Context, aggregateID string, payload any) error {
	evt, err := event.New(aggregateID, payload)
	if err != nil {
		return err
	}
	if _, err := s.store.Append(ctx, evt); err != nil {
		return err
	}
	return nil
}

// fail journals the failure with its pipeline stage, marks the assignment
// failed, and returns the original error.
func (s *Service) fail(ctx context.Context, a *assignment.Assignment, stage string, cause error) (Response, error) {
	a.SetStatus(assignment.StatusFailed)
	failure, err := event.New(a.ID, event.AssignmentFailedPayload{
		Reason: cause.Error(),
		Stage:  stage,
	})
	if err == nil {
		// Best effort: the original error wins even when journaling fails.
		_, _ = s.store.Append(ctx, failure)
	}
	return Response{}, fmt.Errorf("generate feedback (%s): %w", stage, cause)
}
