package lexer

import "testing"

func tokenKinds(t *testing.T, src string) []Kind {
	t.Helper()
	l := New("test", src)
	var kinds []Kind
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("lex error: %v", err)
		}
		kinds = append(kinds, tok.Kind)
		if tok.Kind == EOF {
			return kinds
		}
	}
}

func TestKeywordsAndIdents(t *testing.T) {
	kinds := tokenKinds(t, "local x = foo")
	want := []Kind{KwLocal, Name, Assign, Name, EOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %v want %v", i, kinds[i], want[i])
		}
	}
}

func TestNumberLiterals(t *testing.T) {
	l := New("test", "3 3.5 0x1A 1e2")
	for _, want := range []float64{3, 3.5, 26, 100} {
		tok, err := l.Next()
		if err != nil {
			t.Fatal(err)
		}
		if tok.Kind != Number || tok.Num != want {
			t.Fatalf("got %v want number %v", tok, want)
		}
	}
}

func TestShortStringEscapes(t *testing.T) {
	l := New("test", `"a\nb\x41\065"`)
	tok, err := l.Next()
	if err != nil {
		t.Fatal(err)
	}
	want := "a\nb" + "A" + string(rune(65))
	if tok.Str != want {
		t.Fatalf("got %q want %q", tok.Str, want)
	}
}

func TestLongString(t *testing.T) {
	l := New("test", "[==[\nhello ]] world]==]")
	tok, err := l.Next()
	if err != nil {
		t.Fatal(err)
	}
	if tok.Kind != String || tok.Str != "hello ]] world" {
		t.Fatalf("got %+v", tok)
	}
}

func TestLongComment(t *testing.T) {
	kinds := tokenKinds(t, "--[[ comment\nspans lines ]]\nlocal")
	if len(kinds) != 2 || kinds[0] != KwLocal || kinds[1] != EOF {
		t.Fatalf("got %v", kinds)
	}
}

func TestPeekIsIdempotent(t *testing.T) {
	l := New("test", "end")
	p1, _ := l.Peek()
	p2, _ := l.Peek()
	n, _ := l.Next()
	if p1 != p2 || p1 != n {
		t.Fatalf("peek/next mismatch: %+v %+v %+v", p1, p2, n)
	}
}

func TestOperators(t *testing.T) {
	kinds := tokenKinds(t, "== ~= <= >= .. ... :: = < >")
	want := []Kind{Eq, Ne, Le, Ge, Concat, Ellipsis, DColon, Assign, Lt, Gt, EOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %v want %v", i, kinds[i], want[i])
		}
	}
}

func TestUnterminatedStringErrors(t *testing.T) {
	l := New("test", "\"abc")
	if _, err := l.Next(); err == nil {
		t.Fatal("expected error for unterminated string")
	}
}

func TestChunkIDShortening(t *testing.T) {
	long := "012345678901234567890123456789012345678901234567890123456789extra"
	got := ShortenChunkID(long)
	if len(got) != chunkIDBudget {
		t.Fatalf("got length %d: %q", len(got), got)
	}
	if got[:3] != "..." {
		t.Fatalf("expected ... prefix, got %q", got)
	}
}
