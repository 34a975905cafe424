package bytecode

import (
	"testing"

	"github.com/ember-lang/ember/code"
)

func simpleProto() *code.Prototype {
	p := code.NewPrototype()
	p.Source = "test"
	p.NumParams = 0
	p.MaxStackSize = 2
	p.Code = []code.Instruction{
		code.ABC(code.OpLoadNil, 0, 0, 0, 1),
		code.ABC(code.OpReturn, 0, 1, 0, 1),
	}
	return p
}

func TestDumpProducesSignatureAndTail(t *testing.T) {
	data, err := Dump(simpleProto())
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if len(data) < 4 || [4]byte{data[0], data[1], data[2], data[3]} != Signature {
		t.Fatalf("dumped chunk missing signature header")
	}
}

func TestLoadRejectsBadSignature(t *testing.T) {
	if _, err := Load([]byte("not a chunk"), nil); err != ErrBadSignature {
		t.Fatalf("want ErrBadSignature got %v", err)
	}
}

func TestLoadRejectsCorruptTail(t *testing.T) {
	data, err := Dump(simpleProto())
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	// corrupt a tail-sentinel byte (4-byte signature + 8 header bytes precede it).
	data[12] ^= 0xFF
	if _, err := Load(data, nil); err != ErrCorrupt {
		t.Fatalf("want ErrCorrupt got %v", err)
	}
}

func TestLoadRejectsShortBuffer(t *testing.T) {
	if _, err := Load([]byte{0x1B, 'L', 'u'}, nil); err != ErrBadSignature {
		t.Fatalf("want ErrBadSignature for truncated signature, got %v", err)
	}
}
