package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDetectionFailedError_Is(t *testing.T) {
	err := NewDetectionFailed(context.DeadlineExceeded, "model load timed out")

	if !errors.Is(err, ErrDetectionFailed) {
		t.Error("expected errors.Is(err, ErrDetectionFailed)")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected cause to be reachable via errors.Is")
	}

	var dfe *DetectionFailedError
	if !errors.As(err, &dfe) {
		t.Fatal("expected errors.As to find DetectionFailedError")
	}
	if dfe.Diagnostic != "model load timed out" {
		t.Errorf("diagnostic = %q", dfe.Diagnostic)
	}
}

func TestDetectionFailedError_Message(t *testing.T) {
	err := NewDetectionFailed(errors.New("exit status 1"), "CUDA out of memory")
	msg := err.Error()
	for _, want := range []string{"detection failed", "exit status 1", "CUDA out of memory"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestDetectionFailedError_NilCause(t *testing.T) {
	err := NewDetectionFailed(nil, "")
	if err.Error() != "detection failed" {
		t.Errorf("got %q", err.Error())
	}
	if !errors.Is(err, ErrDetectionFailed) {
		t.Error("expected ErrDetectionFailed")
	}
}
