// Package main is the jailed-side responder: a line loop on stdin/stdout
// speaking the jail protocol. It produces deterministic rubric-aligned
// feedback, standing in for a model during integration wiring and local runs.
// All logging goes to stderr; stdout carries protocol frames only.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/tutormark/internal/marking/domain/event"
	"github.com/louisbranch/tutormark/internal/marking/jail"
	platformcmd "github.com/louisbranch/tutormark/internal/platform/cmd"
)

func main() {
	log.SetPrefix("[AIJAIL] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceAIJail, func(ctx context.Context) error {
		return serve(ctx, os.Stdin, os.Stdout)
	})
	if err != nil {
		log.Fatalf("aijail: %v", err)
	}
}

// serve answers protocol frames until Shutdown, stdin EOF, or cancellation.
func serve(ctx context.Context, in *os.File, out *os.File) error {
	writer := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := jail.Decode(line)
		if err != nil {
			log.Printf("decode frame: %v", err)
			if err := send(writer, jail.NewError("malformed message")); err != nil {
				return err
			}
			continue
		}

		switch msg.Kind {
		case jail.KindPing:
			if err := send(writer, jail.NewPong(msg.Ping.Timestamp)); err != nil {
				return err
			}
		case jail.KindShutdown:
			log.Print("shutdown requested")
			return nil
		case jail.KindFeedbackRequest:
			if err := send(writer, jail.NewAck(msg.FeedbackRequest.RequestID)); err != nil {
				return err
			}
			if err := send(writer, respond(*msg.FeedbackRequest)); err != nil {
				return err
			}
		default:
			if err := send(writer, jail.NewError("unexpected "+string(msg.Kind)+" frame")); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	log.Print("stdin closed")
	return nil
}

func send(writer *bufio.Writer, msg jail.Message) error {
	encoded, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if _, err := writer.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return writer.Flush()
}

// respond scores every rubric criterion deterministically and assembles
// feedback text with explicit strength and suggestion lines.
func respond(req jail.FeedbackRequest) jail.Message {
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
	} else {
		// A request without parsed criteria still gets one overall score so
		// the response passes quality validation on the other side.
		scores = append(scores, event.CriterionScore{
			CriterionNumber: 1,
			CriterionText:   "Overall quality",
			Score:           70,
			MaxScore:        100,
			Feedback:        "Good attempt overall",
		})
	}

	feedback := "Your answer shows a solid grasp of the material across the rubric.\n" +
		"Good coverage of the core concepts throughout.\n" +
		"Consider adding worked examples to strengthen the weaker criteria."

	return jail.NewFeedbackResponse(jail.FeedbackResponse{
		RequestID:    req.RequestID,
		Feedback:     feedback,
		Scores:       scores,
		OverallGrade: grade,
	})
}
