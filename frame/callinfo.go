package frame

import "github.com/ember-lang/ember/value"

// CallStatus is the per-frame flags bitfield (spec §3 "Call frame").
type CallStatus uint8

const (
	StatusLuaFunction CallStatus = 1 << iota
	StatusTailCall
	StatusProtected
	StatusHookActive
	StatusYielded
	StatusHasStatusSet
	StatusReentry
)

// Continuation is recorded on a host-function frame so that, if the
// current host call yields, execution can resume at the continuation
// upon later resume (spec glossary "Continuation", §4.8).
type Continuation struct {
	Func func(ctx int, results []value.Value) ([]value.Value, error)
	Ctx  int
}

// CallInfo is the per-invocation record (spec §3 "Call frame"). Frames
// form a doubly-linked list rooted at a zeroth host→Lua boundary frame
// (the Stack's s.frames with Prev == nil).
type CallInfo struct {
	Prev, Next *CallInfo

	Func int // index into the stack of the function's own slot
	Base int // first argument/local slot
	Top  int // one past the last valid value this frame may use

	SavedPC int
	// NumResults is the expected result count; -1 means "all" (spec §3).
	NumResults int

	Status CallStatus

	// Lua-function-only fields.
	Closure   interface{} // *code... concrete closure, kept untyped here to avoid an import cycle with code/vm
	ExtraArgs []value.Value // fixed-arity overflow for a vararg function (spec §4.3 "Vararg handling")

	// Host-function-only fields.
	Continuation       *Continuation
	SavedErrorHandler  int
	SavedAllowHook     bool
	SavedFuncIndex     int
}

func (ci *CallInfo) IsLua() bool       { return ci.Status&StatusLuaFunction != 0 }
func (ci *CallInfo) IsTailCall() bool  { return ci.Status&StatusTailCall != 0 }
func (ci *CallInfo) IsProtected() bool { return ci.Status&StatusProtected != 0 }

// PushFrame allocates a new CallInfo, reusing a previously-freed next
// frame when present (spec §4.3 "Frame allocation reuses linked next
// frames when present, else allocates").
func (s *Stack) PushFrame() *CallInfo {
	cur := s.frames
	if cur.Next != nil {
		next := cur.Next
		next.Status = 0
		next.Continuation = nil
		next.Closure = nil
		s.frames = next
		return next
	}
	next := &CallInfo{Prev: cur}
	cur.Next = next
	s.frames = next
	return next
}

// PopFrame returns to the previous frame without freeing the popped one,
// so a subsequent PushFrame can reuse it.
func (s *Stack) PopFrame() {
	if s.frames.Prev != nil {
		s.frames = s.frames.Prev
	}
}

// CurrentFrame returns the innermost active call frame.
func (s *Stack) CurrentFrame() *CallInfo { return s.frames }

// ShrinkFrames frees every frame beyond one spare past the current
// frame (spec §4.3: "Shrinking keeps one spare then frees the rest").
func (s *Stack) ShrinkFrames() {
	cur := s.frames
	if cur.Next != nil {
		cur.Next.Next = nil
	}
}
