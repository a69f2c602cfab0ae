package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(TemplateNotFound, "no template %q", "missing")
	if KindOf(err) != TemplateNotFound {
		t.Errorf("KindOf = %s, want TEMPLATE_NOT_FOUND", KindOf(err))
	}

	// Wrapping with fmt.Errorf must not hide the kind.
	wrapped := fmt.Errorf("loading failed: %w", err)
	if KindOf(wrapped) != TemplateNotFound {
		t.Errorf("KindOf(wrapped) = %s, want TEMPLATE_NOT_FOUND", KindOf(wrapped))
	}

	// Errors from outside the taxonomy map to INTERNAL.
	if KindOf(errors.New("plain")) != Internal {
		t.Errorf("KindOf(plain) = %s, want INTERNAL", KindOf(errors.New("plain")))
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(EngineComm, cause, "status request failed")

	if !errors.Is(err, cause) {
		t.Error("wrapped cause lost")
	}
	if !IsKind(err, EngineComm) {
		t.Errorf("kind = %s, want ENGINE_COMM", KindOf(err))
	}
}

func TestIsKind_NilAndMismatch(t *testing.T) {
	if IsKind(nil, Internal) {
		t.Error("IsKind(nil) = true")
	}
	err := New(TimedOut, "too slow")
	if IsKind(err, EngineComm) {
		t.Error("IsKind matched the wrong kind")
	}
}
