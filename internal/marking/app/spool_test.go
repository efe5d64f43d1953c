package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/tutormark/internal/marking/feedback"
	"github.com/louisbranch/tutormark/internal/marking/security"
	"github.com/louisbranch/tutormark/internal/marking/storage/memory"
)

func newTestWorker(t *testing.T) (*Worker, string) {
	t.Helper()
	spoolDir := t.TempDir()
	service := feedback.NewService(security.NewGate(), memory.New(), feedback.WithSalt("test-salt"))
	worker, err := NewWorker(spoolDir, service)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	return worker, spoolDir
}

func writeSubmission(t *testing.T, spoolDir, name string, submission Submission) {
	t.Helper()
	encoded, err := json.Marshal(submission)
	if err != nil {
		t.Fatalf("marshal submission: %v", err)
	}
	path := filepath.Join(spoolDir, "incoming", name)
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write submission: %v", err)
	}
}

func TestNewWorkerCreatesSpoolLayout(t *testing.T) {
	t.Parallel()

	_, spoolDir := newTestWorker(t)
	for _, sub := range []string{"incoming", "outgoing", "failed"} {
		info, err := os.Stat(filepath.Join(spoolDir, sub))
		if err != nil || !info.IsDir() {
			t.Fatalf("spool dir %s missing: %v", sub, err)
		}
	}
}

func TestNewWorkerValidation(t *testing.T) {
	t.Parallel()

	service := feedback.NewService(security.NewGate(), memory.New())
	if _, err := NewWorker("", service); err == nil {
		t.Fatal("expected empty spool dir to be rejected")
	}
	if _, err := NewWorker(t.TempDir(), nil); err == nil {
		t.Fatal("expected nil service to be rejected")
	}
}

func TestScanProcessesSubmission(t *testing.T) {
	t.Parallel()

	worker, spoolDir := newTestWorker(t)
	writeSubmission(t, spoolDir, "tma01.json", Submission{
		StudentID:      "student123",
		ModuleCode:     "TM112",
		QuestionNumber: 1,
		Content:        "This is my answer to the question.",
		Rubric:         "1. Understanding\n2. Application",
	})

	worker.scan(context.Background())

	data, err := os.ReadFile(filepath.Join(spoolDir, "outgoing", "tma01.json"))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if result.AssignmentID == "" {
		t.Fatal("result missing assignment id")
	}
	if !result.Placeholder {
		t.Fatal("expected placeholder result without a jail")
	}
	if len(result.Scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(result.Scores))
	}

	if _, err := os.Stat(filepath.Join(spoolDir, "incoming", "tma01.json")); !os.IsNotExist(err) {
		t.Fatal("processed submission still in incoming spool")
	}
}

func TestScanMovesInvalidSubmissionToFailed(t *testing.T) {
	t.Parallel()

	worker, spoolDir := newTestWorker(t)
	writeSubmission(t, spoolDir, "bad.json", Submission{
		StudentID:      "",
		ModuleCode:     "TM112",
		QuestionNumber: 1,
		Content:        "Answer",
		Rubric:         "1. Understanding",
	})

	worker.scan(context.Background())

	if _, err := os.Stat(filepath.Join(spoolDir, "failed", "bad.json")); err != nil {
		t.Fatalf("submission not moved to failed spool: %v", err)
	}
	reason, err := os.ReadFile(filepath.Join(spoolDir, "failed", "bad.json.error"))
	if err != nil {
		t.Fatalf("failure reason missing: %v", err)
	}
	if len(reason) == 0 {
		t.Fatal("failure reason is empty")
	}
}

func TestScanMovesMalformedJSONToFailed(t *testing.T) {
	t.Parallel()

	worker, spoolDir := newTestWorker(t)
	path := filepath.Join(spoolDir, "incoming", "garbage.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	worker.scan(context.Background())

	if _, err := os.Stat(filepath.Join(spoolDir, "failed", "garbage.json")); err != nil {
		t.Fatalf("garbage not moved to failed spool: %v", err)
	}
}

func TestScanIgnoresNonJSONFiles(t *testing.T) {
	t.Parallel()

	worker, spoolDir := newTestWorker(t)
	path := filepath.Join(spoolDir, "incoming", "notes.txt")
	if err := os.WriteFile(path, []byte("just notes"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	worker.scan(context.Background())

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("non-json file should be left alone: %v", err)
	}
}

func TestRunPicksUpNewSubmission(t *testing.T) {
	t.Parallel()

	worker, spoolDir := newTestWorker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Give the watcher a moment to attach before dropping the file.
	time.Sleep(100 * time.Millisecond)
	writeSubmission(t, spoolDir, "tma02.json", Submission{
		StudentID:      "student456",
		ModuleCode:     "M250",
		QuestionNumber: 2,
		Content:        "A second answer with enough substance to mark.",
		Rubric:         "1. Correctness",
	})

	resultPath := filepath.Join(spoolDir, "outgoing", "tma02.json")
	deadline := time.After(5 * time.Second)
	for {
		if _, err := os.Stat(resultPath); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("result never appeared in outgoing spool")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v, want context.Canceled", err)
	}
}
