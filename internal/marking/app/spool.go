// Package app runs the marking pipeline over a filesystem spool: assignment
// JSON dropped into incoming/ is processed, results land in outgoing/, and
// failed submissions move to failed/ with the error alongside.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/louisbranch/tutormark/internal/marking/domain/assignment"
	"github.com/louisbranch/tutormark/internal/marking/feedback"
	"github.com/louisbranch/tutormark/internal/platform/timeouts"
)

// Spool subdirectory names.
const (
	dirIncoming = "incoming"
	dirOutgoing = "outgoing"
	dirFailed   = "failed"
)

// Submission is the JSON shape accepted in the incoming spool.
type Submission struct {
	StudentID      string `json:"student_id"`
	ModuleCode     string `json:"module_code"`
	QuestionNumber int    `json:"question_number"`
	Content        string `json:"content"`
	Rubric         string `json:"rubric"`
}

// Result is the JSON shape written to the outgoing spool.
type Result struct {
	AssignmentID string          `json:"assignment_id"`
	Feedback     string          `json:"feedback"`
	Scores       []feedbackScore `json:"scores"`
	OverallGrade float64         `json:"overall_grade"`
	Suggestions  []string        `json:"suggestions,omitempty"`
	Strengths    []string        `json:"strengths,omitempty"`
	Placeholder  bool            `json:"placeholder,omitempty"`
}

type feedbackScore struct {
	CriterionNumber int     `json:"criterion_number"`
	CriterionText   string  `json:"criterion_text"`
	Score           float64 `json:"score"`
	MaxScore        float64 `json:"max_score"`
	Feedback        string  `json:"feedback"`
}

// Worker drains the spool. One worker owns the spool directory; submissions
// are processed sequentially since the jail holds one exchange at a time.
type Worker struct {
	spoolDir string
	service  *feedback.Service
	rescan   time.Duration
}

// NewWorker prepares the spool layout and returns a worker over it.
func NewWorker(spoolDir string, service *feedback.Service) (*Worker, error) {
	if strings.TrimSpace(spoolDir) == "" {
		return nil, fmt.Errorf("spool dir is required")
	}
	if service == nil {
		return nil, fmt.Errorf("feedback service is required")
	}
	for _, sub := range []string{dirIncoming, dirOutgoing, dirFailed} {
		if err := os.MkdirAll(filepath.Join(spoolDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create spool dir %s: %w", sub, err)
		}
	}
	return &Worker{
		spoolDir: spoolDir,
		service:  service,
		rescan:   timeouts.SpoolRescan,
	}, nil
}

// Run watches the incoming spool until the context is canceled. A periodic
// rescan backstops fsnotify so files present before startup, or events lost
// during processing, are still picked up.
func (w *Worker) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	incoming := filepath.Join(w.spoolDir, dirIncoming)
	if err := watcher.Add(incoming); err != nil {
		return fmt.Errorf("watch incoming spool: %w", err)
	}

	ticker := time.NewTicker(w.rescan)
	defer ticker.Stop()

	// Drain anything that was already waiting.
	w.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.scan(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("spool watcher: %v", err)
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

// scan processes every JSON file currently in the incoming spool.
func (w *Worker) scan(ctx context.Context) {
	incoming := filepath.Join(w.spoolDir, dirIncoming)
	entries, err := os.ReadDir(incoming)
	if err != nil {
		log.Printf("read incoming spool: %v", err)
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		w.process(ctx, filepath.Join(incoming, entry.Name()))
	}
}

// process runs one submission through the pipeline and files the outcome.
func (w *Worker) process(ctx context.Context, path string) {
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("read submission %s: %v", name, err)
		return
	}

	var submission Submission
	if err := json.Unmarshal(data, &submission); err != nil {
		w.moveToFailed(path, fmt.Errorf("parse submission: %w", err))
		return
	}

	a, err := assignment.New(submission.StudentID, submission.ModuleCode,
		submission.QuestionNumber, submission.Content, submission.Rubric)
	if err != nil {
		w.moveToFailed(path, err)
		return
	}

	resp, err := w.service.GenerateFeedback(ctx, a)
	if err != nil {
		w.moveToFailed(path, err)
		return
	}

	if err := w.writeResult(name, resp); err != nil {
		log.Printf("write result for %s: %v", name, err)
		w.moveToFailed(path, err)
		return
	}
	if err := os.Remove(path); err != nil {
		log.Printf("remove processed submission %s: %v", name, err)
	}
	log.Printf("marked %s: assignment %s graded %.1f", name, a.ID, resp.OverallGrade)
}

func (w *Worker) writeResult(name string, resp feedback.Response) error {
	scores := make([]feedbackScore, 0, len(resp.Scores))
	for _, s := range resp.Scores {
		scores = append(scores, feedbackScore{
			CriterionNumber: s.CriterionNumber,
			CriterionText:   s.CriterionText,
			Score:           s.Score,
			MaxScore:        s.MaxScore,
			Feedback:        s.Feedback,
		})
	}

	encoded, err := json.MarshalIndent(Result{
		AssignmentID: resp.AssignmentID,
		Feedback:     resp.Feedback,
		Scores:       scores,
		OverallGrade: resp.OverallGrade,
		Suggestions:  resp.Suggestions,
		Strengths:    resp.Strengths,
		Placeholder:  resp.Placeholder,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	target := filepath.Join(w.spoolDir, dirOutgoing, name)
	if err := os.WriteFile(target, encoded, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// moveToFailed relocates a rejected submission and records the reason next to
// it as <name>.error.
func (w *Worker) moveToFailed(path string, cause error) {
	name := filepath.Base(path)
	target := filepath.Join(w.spoolDir, dirFailed, name)
	if err := os.Rename(path, target); err != nil {
		log.Printf("move %s to failed spool: %v", name, err)
		return
	}
	reason := []byte(cause.Error() + "\n")
	if err := os.WriteFile(target+".error", reason, 0o644); err != nil {
		log.Printf("write failure reason for %s: %v", name, err)
	}
	log.Printf("rejected %s: %v", name, cause)
}
