package parser

import (
	"strings"
	"testing"
)

func TestParseSimpleAssignment(t *testing.T) {
	proto, err := Parse("test", "local x = 1 + 2")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(proto.Code) == 0 {
		t.Fatalf("expected at least one emitted instruction")
	}
}

func TestParseIfWhileFor(t *testing.T) {
	src := `
local sum = 0
for i = 1, 10 do
  if i % 2 == 0 then
    sum = sum + i
  end
end
while sum > 100 do
  sum = sum - 1
end
return sum
`
	if _, err := Parse("test", src); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
}

func TestParseFunctionDeclAndCall(t *testing.T) {
	src := `
function add(a, b)
  return a + b
end
return add(1, 2)
`
	proto, err := Parse("test", src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(proto.Protos) != 1 {
		t.Fatalf("want one nested function prototype, got %d", len(proto.Protos))
	}
}

func TestParseTableConstructorAndIndex(t *testing.T) {
	src := `
local t = {1, 2, 3, x = "y"}
return t[1], t.x
`
	if _, err := Parse("test", src); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
}

func TestParseSyntaxErrorReportsLine(t *testing.T) {
	_, err := Parse("test", "local x = \nlocal y = 1")
	if err == nil {
		t.Fatalf("expected a syntax error")
	}
	if !strings.Contains(err.Error(), "test:2:") {
		t.Fatalf("syntax error should report line 2, got %q", err.Error())
	}
}

func TestParseGotoLabel(t *testing.T) {
	src := `
do
  goto done
  ::done::
end
`
	if _, err := Parse("test", src); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
}

func TestParseLocalFunctionClosure(t *testing.T) {
	src := `
local function counter()
  local n = 0
  return function()
    n = n + 1
    return n
  end
end
return counter()
`
	if _, err := Parse("test", src); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
}
