package vmerr

import (
	"strings"
	"testing"

	"github.com/ember-lang/ember/value"
)

func TestSyntaxFormatsChunkLineAndNear(t *testing.T) {
	e := Syntax("chunk", 12, "unexpected symbol", "end")
	want := "chunk:12: unexpected symbol near 'end'"
	if e.Error() != want {
		t.Fatalf("want %q got %q", want, e.Error())
	}
	if e.Kind != KindSyntaxError {
		t.Fatalf("want KindSyntaxError got %v", e.Kind)
	}
}

func TestSyntaxWithoutNearToken(t *testing.T) {
	e := Syntax("chunk", 3, "malformed number", "")
	want := "chunk:3: malformed number"
	if e.Error() != want {
		t.Fatalf("want %q got %q", want, e.Error())
	}
}

func TestTypeErrorIncludesVarDesc(t *testing.T) {
	e := TypeError("chunk", 7, "index", "nil", "local 'x'")
	if !strings.Contains(e.Error(), "attempt to index a nil value (local 'x')") {
		t.Fatalf("unexpected message: %q", e.Error())
	}
}

func TestTypeErrorOmitsVarDescWhenEmpty(t *testing.T) {
	e := TypeError("chunk", 7, "call", "boolean", "")
	if strings.Contains(e.Error(), "(") {
		t.Fatalf("message should not contain a parenthetical when varDesc is empty: %q", e.Error())
	}
}

func TestMemoryIsPreinterned(t *testing.T) {
	a := Memory()
	b := Memory()
	if a != b {
		t.Fatalf("Memory should return the same pre-built Error on every call")
	}
	if a.Kind != KindMemoryError || b.Kind != KindMemoryError {
		t.Fatalf("both should carry KindMemoryError")
	}
}

func TestErrorInErrorHandlerKind(t *testing.T) {
	e := ErrorInErrorHandler()
	if e.Kind != KindErrorInErrorHandler {
		t.Fatalf("want KindErrorInErrorHandler got %v", e.Kind)
	}
}

func TestErrorValueForNonStringPayload(t *testing.T) {
	e := New(KindRuntimeError, value.Number(42), 0)
	if e.Error() != KindRuntimeError.String() {
		t.Fatalf("non-string payload should fall back to Kind.String(), got %q", e.Error())
	}
}
