package errors

import (
	"testing"
)

func TestSentinelWrapping(t *testing.T) {
	err := NewValidationError("name must be a non-empty string")
	if !IsValidationError(err) {
		t.Error("expected wrapped validation error to match ErrValidation")
	}
	if IsStorageError(err) {
		t.Error("validation error should not match ErrStorage")
	}

	wrapped := Wrap(err, "creating subprompt")
	if !IsValidationError(wrapped) {
		t.Error("wrapping should preserve the sentinel")
	}
}

func TestCircularReferenceError(t *testing.T) {
	err := NewCircularReference([]string{"a", "b", "a"})
	if !IsCircularReference(err) {
		t.Fatal("expected IsCircularReference to be true")
	}

	want := "circular reference detected: a -> b -> a"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	path := CyclePath(Wrap(err, "resolving"))
	if len(path) != 3 || path[0] != "a" || path[2] != "a" {
		t.Errorf("unexpected cycle path: %v", path)
	}
}

func TestCyclePathIsCopied(t *testing.T) {
	src := []string{"x", "y"}
	err := NewCircularReference(src)
	src[0] = "mutated"

	if CyclePath(err)[0] != "x" {
		t.Error("cycle path should be independent of the caller's slice")
	}
}

func TestNotFoundSentinel(t *testing.T) {
	err := Wrapf(ErrNotFound, "subprompt %s", "abc123")
	if !IsNotFoundError(err) {
		t.Error("expected wrapped not-found error to match ErrNotFound")
	}
	if IsNotFoundError(nil) {
		t.Error("nil must never match")
	}
}
