package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeSecurityPIILeak, "pii detected")
	target := New(CodeSecurityPIILeak, "different message")

	if !stderrors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(err, New(CodeNotFound, "record not found")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeStorageAppend, "append event", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found in chain")
	}
	if err.Error() != "append event" {
		t.Fatalf("Error() = %q, want %q", err.Error(), "append event")
	}
}

func TestCodeOf(t *testing.T) {
	err := New(CodeJailTimeout, "timed out")
	wrapped := fmt.Errorf("generate feedback: %w", err)

	if got := CodeOf(wrapped); got != CodeJailTimeout {
		t.Fatalf("CodeOf = %s, want %s", got, CodeJailTimeout)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf = %s, want %s", got, CodeUnknown)
	}
}

func TestWithMetadata(t *testing.T) {
	err := WithMetadata(CodeAssignmentContentTooLong, "content too long", map[string]string{
		"max":    "102400",
		"actual": "102401",
	})

	if err.Metadata["max"] != "102400" {
		t.Fatalf("metadata max = %q, want %q", err.Metadata["max"], "102400")
	}
	if !HasCode(err, CodeAssignmentContentTooLong) {
		t.Fatal("expected HasCode to match")
	}
}
