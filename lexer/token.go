// Package lexer implements the byte-at-a-time tokenizer of spec §4.5:
// reserved words, identifiers, decimal/hex numbers, short and long
// strings, long and short comments, and punctuation, with one-token
// lookahead.
package lexer

import "github.com/ember-lang/ember/value"

// Kind is a token's lexical category.
type Kind int

const (
	EOF Kind = iota
	Name
	Number
	String

	// Reserved words, in value.ReservedWords order so Kind-from-word is a
	// single arithmetic offset instead of a second map lookup.
	KwAnd
	KwBreak
	KwDo
	KwElse
	KwElseif
	KwEnd
	KwFalse
	KwFor
	KwFunction
	KwGoto
	KwIf
	KwIn
	KwLocal
	KwNil
	KwNot
	KwOr
	KwRepeat
	KwReturn
	KwThen
	KwTrue
	KwUntil
	KwWhile

	// Punctuation.
	Plus
	Minus
	Star
	Slash
	Percent
	Caret
	Hash
	Eq
	Ne
	Le
	Ge
	Lt
	Gt
	Assign
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	DColon
	Semi
	Colon
	Comma
	Dot
	Concat
	Ellipsis
)

var firstKeyword = KwAnd

func keywordKind(reservedIndex int) Kind { return firstKeyword + Kind(reservedIndex) }

var kindNames = map[Kind]string{
	EOF: "<eof>", Name: "<name>", Number: "<number>", String: "<string>",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%", Caret: "^",
	Hash: "#", Eq: "==", Ne: "~=", Le: "<=", Ge: ">=", Lt: "<", Gt: ">",
	Assign: "=", LParen: "(", RParen: ")", LBrace: "{", RBrace: "}",
	LBracket: "[", RBracket: "]", DColon: "::", Semi: ";", Colon: ":",
	Comma: ",", Dot: ".", Concat: "..", Ellipsis: "...",
}

func init() {
	for i, w := range value.ReservedWords {
		kindNames[keywordKind(i)] = w
	}
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "?"
}

// Token is one lexical unit (spec §4.5).
type Token struct {
	Kind Kind
	Str  string  // Name, String, and keyword spelling
	Num  float64 // Number
	IsInt bool   // Number: literal had no fractional/exponent part
	Line int
}

func (t Token) String() string {
	if t.Str != "" {
		return t.Str
	}
	return t.Kind.String()
}
