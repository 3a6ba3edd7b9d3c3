package services_test

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"testing"

	"filer/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "organizer", "move", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"organizer", "move", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"nil", nil, services.KindNone},
		{"validation", services.Wrap(services.ErrValidation, "rules", "create", "bad pattern", nil), services.KindValidation},
		{"state", services.Wrap(services.ErrState, "organizer", "rollback", "", nil), services.KindState},
		{"conflict marker", services.Wrap(services.ErrConflict, "organizer", "move", "", nil), services.KindConflict},
		{"raw not exist", &fs.PathError{Op: "stat", Path: "/x", Err: fs.ErrNotExist}, services.KindNotFound},
		{"raw permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, services.KindPermission},
		{"raw exdev", &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV}, services.KindCrossDevice},
		{"raw exist", fmt.Errorf("wrap: %w", fs.ErrExist), services.KindConflict},
		{"unknown", errors.New("mystery"), services.KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMarkerWinsOverUnderlyingError(t *testing.T) {
	err := services.Wrap(services.ErrState, "organizer", "rollback", "not movable", fs.ErrNotExist)
	if got := services.Classify(err); got != services.KindState {
		t.Fatalf("expected state classification, got %q", got)
	}
	if services.Retryable(err) {
		t.Fatal("state errors must not be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrTransient, "store", "insert", "", nil)) {
		t.Fatal("transient errors should be retryable")
	}
}
