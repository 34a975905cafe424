package value

import "github.com/davecgh/go-spew/spew"

// inspectConfig renders cycles and pointer addresses the way a debugger
// would want them, without spew's default method-call probing (Values
// expose no Stringer worth invoking mid-dump).
var inspectConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	MaxDepth:                6,
}

// Inspect renders a Value graph for diagnostics. Nothing in this module
// calls it; it is not on any hot path, so allocation and reflection
// cost are acceptable here.
func Inspect(v Value) string {
	switch v.Tag() {
	case TagNil:
		return "nil"
	case TagBool:
		return inspectConfig.Sdump(v.AsBool())
	case TagNumber:
		return NumberToString(v.AsNumber())
	case TagString:
		if s, ok := v.Object().(*Str); ok {
			return QuoteString(s.Bytes)
		}
	}
	return inspectConfig.Sdump(v.Object())
}
