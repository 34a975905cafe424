// Package vmerr implements the closed error taxonomy of spec §7: a
// tagged Kind plus an Error carrying the host-visible payload value, an
// optional source position, and a captured Go-side traceback for
// diagnostics (the runtime's own call-stack unwinding is frame's job;
// this traceback is purely a debugging aid for the embedder).
package vmerr

import (
	"fmt"
	"strings"

	"github.com/go-stack/stack"

	"github.com/ember-lang/ember/value"
)

// Kind is the closed enum of spec §7/§4.8's error taxonomy (SPEC_FULL.md
// §B enumerates all thirteen; "ok" is not itself an error and exists so
// coroutine's status machine can share this one enum for both a
// thread's resume outcome and its terminal error kind).
type Kind int

const (
	KindOk Kind = iota
	KindYield
	KindRuntimeError
	KindSyntaxError
	KindMemoryError
	KindGCMetamethodError
	KindErrorInErrorHandler
	KindStackOverflow
	KindBadKey
	KindBadTable
	KindBadIndexMetamethod
	KindMetaLoop
	KindBadMath
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindYield:
		return "yield"
	case KindRuntimeError:
		return "runtime error"
	case KindSyntaxError:
		return "syntax error"
	case KindMemoryError:
		return "not enough memory"
	case KindGCMetamethodError:
		return "error in __gc metamethod"
	case KindErrorInErrorHandler:
		return "error in error handling"
	case KindStackOverflow:
		return "stack overflow"
	case KindBadKey:
		return "table index is nil or NaN"
	case KindBadTable:
		return "attempt to index a non-table value"
	case KindBadIndexMetamethod:
		return "'__index' or '__newindex' is neither a function nor a table"
	case KindMetaLoop:
		return "'__index' chain too long; possible loop"
	case KindBadMath:
		return "attempt to perform arithmetic on a non-number value"
	default:
		return "unknown error"
	}
}

// Error is the value propagated across a protected call boundary (spec
// §7). Value holds whatever the script raised (any Value, not just a
// string); Kind classifies it for the host; ChunkName/Line position a
// string message when available.
type Error struct {
	Kind      Kind
	Value     value.Value
	ChunkName string
	Line      int

	// trace is captured at construction time purely for embedder-side
	// debugging (go-stack/stack), not part of the language's observable
	// error value.
	trace stack.CallStack
}

func (e *Error) Error() string {
	if e.Value.Tag() == value.TagString {
		return e.Value.Object().(*value.Str).Bytes
	}
	return e.Kind.String()
}

// Traceback renders the captured Go-side call stack, trimmed of
// runtime frames, one call per line.
func (e *Error) Traceback() string {
	var b strings.Builder
	for _, c := range e.trace {
		fmt.Fprintf(&b, "%+v\n", c)
	}
	return b.String()
}

// New constructs a runtime Error, capturing the current Go call stack
// for diagnostics. skip is the number of additional frames to trim
// (typically 1, for New's own frame).
func New(kind Kind, v value.Value, skip int) *Error {
	return &Error{
		Kind:  kind,
		Value: v,
		trace: stack.Trace().TrimBelow(stack.Caller(skip + 1)),
	}
}

// Positioned wraps a string message with chunk-id and line, matching
// spec §7's "chunk-id : line : message" format used both for syntax
// errors and for `error(msg, level>0)` on string messages.
func Positioned(chunkName string, line int, msg string) string {
	return fmt.Sprintf("%s:%d: %s", chunkName, line, msg)
}

// The Str values built by Syntax, TypeError, Memory, and
// ErrorInErrorHandler are detached staging objects: vmerr has no
// collector reference, so they are never registered on the all-objects
// list. The vm package re-homes their bytes into a properly interned,
// collector-registered Str before the error crosses into script-visible
// state (e.g. the result of pcall).

// Syntax constructs a KindSyntaxError error with the "near token" suffix
// spec §7 describes, when near is non-empty.
func Syntax(chunkName string, line int, msg, near string) *Error {
	full := Positioned(chunkName, line, msg)
	if near != "" {
		full = full + " near '" + near + "'"
	}
	s := &value.Str{Bytes: full, Reserved: -1}
	return New(KindSyntaxError, value.FromObject(value.TagString, s), 1)
}

// TypeError formats spec §7's runtime type-error message: the attempted
// operation, the type name, and — when known — the value's recovered
// source-level name ("local 'x'", "upvalue 'y'", "global 'z'", "field
// 'w'", or "" when symbolic recovery found nothing).
func TypeError(chunkName string, line int, op, typeName, varDesc string) *Error {
	msg := "attempt to " + op + " a " + typeName + " value"
	if varDesc != "" {
		msg += " (" + varDesc + ")"
	}
	s := &value.Str{Bytes: Positioned(chunkName, line, msg), Reserved: -1}
	return New(KindRuntimeError, value.FromObject(value.TagString, s), 1)
}

// Memory is the single pre-interned out-of-memory error (spec §7:
// "created at startup so they need no allocation"). It is built once at
// package initialization and every call returns the same *Error value.
func Memory() *Error {
	return memoryError
}

var memoryError = &Error{
	Kind:  KindMemoryError,
	Value: value.FromObject(value.TagString, &value.Str{Bytes: KindMemoryError.String(), Reserved: -1}),
}

// ErrorInErrorHandler is returned, with no further recursion, when a
// message handler itself raises (spec §7).
func ErrorInErrorHandler() *Error {
	s := &value.Str{Bytes: KindErrorInErrorHandler.String(), Reserved: -1}
	return &Error{Kind: KindErrorInErrorHandler, Value: value.FromObject(value.TagString, s)}
}
