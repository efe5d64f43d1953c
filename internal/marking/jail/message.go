// Package jail spawns and talks to the sandboxed inference process over
// line-delimited JSON on stdin/stdout. Stderr carries logs only and is never
// parsed as protocol.
package jail

import (
	"encoding/json"

	"github.com/louisbranch/tutormark/internal/marking/domain/assignment"
	"github.com/louisbranch/tutormark/internal/marking/domain/event"
	apperrors "github.com/louisbranch/tutormark/internal/platform/errors"
)

// Kind tags a protocol message variant.
type Kind string

const (
	KindFeedbackRequest  Kind = "FeedbackRequest"
	KindFeedbackResponse Kind = "FeedbackResponse"
	KindPing             Kind = "Ping"
	KindPong             Kind = "Pong"
	KindError            Kind = "Error"
	KindShutdown         Kind = "Shutdown"
	KindAck              Kind = "Ack"
)

// FeedbackRequest asks the jailed process to mark sanitized content against
// a rubric. Content must already have passed the security gate.
type FeedbackRequest struct {
	RequestID string                       `json:"request_id"`
	Content   string                       `json:"content"`
	Rubric    string                       `json:"rubric"`
	Criteria  []assignment.RubricCriterion `json:"criteria"`
}

// FeedbackResponse carries generated feedback back from the jail.
type FeedbackResponse struct {
	RequestID    string                 `json:"request_id"`
	Feedback     string                 `json:"feedback"`
	Scores       []event.CriterionScore `json:"scores"`
	OverallGrade float64                `json:"overall_grade"`
}

// Ping is a health probe; the jail answers with Pong echoing the timestamp.
type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

// Pong answers a Ping.
type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

// RemoteError reports a failure raised inside the jail.
type RemoteError struct {
	Message string `json:"message"`
}

// Ack acknowledges receipt of a request before the response is ready.
type Ack struct {
	RequestID string `json:"request_id"`
}

// Message is one protocol frame. Exactly the field matching Kind is set;
// Shutdown has no payload.
type Message struct {
	Kind             Kind
	FeedbackRequest  *FeedbackRequest
	FeedbackResponse *FeedbackResponse
	Ping             *Ping
	Pong             *Pong
	Error            *RemoteError
	Ack              *Ack
}

// envelope is the wire form: a type tag plus an optional payload object.
type envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFeedbackRequest wraps a request payload into a frame.
func NewFeedbackRequest(req FeedbackRequest) Message {
	return Message{Kind: KindFeedbackRequest, FeedbackRequest: &req}
}

// NewFeedbackResponse wraps a response payload into a frame.
func NewFeedbackResponse(resp FeedbackResponse) Message {
	return Message{Kind: KindFeedbackResponse, FeedbackResponse: &resp}
}

// NewPing builds a health probe frame.
func NewPing(timestamp int64) Message {
	return Message{Kind: KindPing, Ping: &Ping{Timestamp: timestamp}}
}

// NewPong builds a health probe answer frame.
func NewPong(timestamp int64) Message {
	return Message{Kind: KindPong, Pong: &Pong{Timestamp: timestamp}}
}

// NewError builds an error frame.
func NewError(message string) Message {
	return Message{Kind: KindError, Error: &RemoteError{Message: message}}
}

// NewShutdown builds the payload-less shutdown frame.
func NewShutdown() Message {
	return Message{Kind: KindShutdown}
}

// NewAck builds an acknowledgment frame.
func NewAck(requestID string) Message {
	return Message{Kind: KindAck, Ack: &Ack{RequestID: requestID}}
}

// Encode serializes the frame to one JSON line without the trailing newline.
func (m Message) Encode() ([]byte, error) {
	var payload any
	switch m.Kind {
	case KindFeedbackRequest:
		payload = m.FeedbackRequest
	case KindFeedbackResponse:
		payload = m.FeedbackResponse
	case KindPing:
		payload = m.Ping
	case KindPong:
		payload = m.Pong
	case KindError:
		payload = m.Error
	case KindAck:
		payload = m.Ack
	case KindShutdown:
		return json.Marshal(envelope{Type: KindShutdown})
	default:
		return nil, apperrors.New(apperrors.CodeJailInvalidMessage, "unknown message kind "+string(m.Kind))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeJailEncode, "marshal "+string(m.Kind)+" payload", err)
	}
	return json.Marshal(envelope{Type: m.Kind, Payload: raw})
}

// Decode parses one JSON line into a frame.
func Decode(line []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Message{}, apperrors.Wrap(apperrors.CodeJailDecode, "unmarshal message envelope", err)
	}

	msg := Message{Kind: env.Type}
	var err error
	switch env.Type {
	case KindFeedbackRequest:
		msg.FeedbackRequest = &FeedbackRequest{}
		err = unmarshalPayload(env.Payload, msg.FeedbackRequest)
	case KindFeedbackResponse:
		msg.FeedbackResponse = &FeedbackResponse{}
		err = unmarshalPayload(env.Payload, msg.FeedbackResponse)
	case KindPing:
		msg.Ping = &Ping{}
		err = unmarshalPayload(env.Payload, msg.Ping)
	case KindPong:
		msg.Pong = &Pong{}
		err = unmarshalPayload(env.Payload, msg.Pong)
	case KindError:
		msg.Error = &RemoteError{}
		err = unmarshalPayload(env.Payload, msg.Error)
	case KindAck:
		msg.Ack = &Ack{}
		err = unmarshalPayload(env.Payload, msg.Ack)
	case KindShutdown:
	default:
		return Message{}, apperrors.New(apperrors.CodeJailInvalidMessage, "unknown message type "+string(env.Type))
	}
	if err != nil {
		return Message{}, apperrors.Wrap(apperrors.CodeJailDecode, "unmarshal "+string(env.Type)+" payload", err)
	}
	return msg, nil
}

func unmarshalPayload(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}
