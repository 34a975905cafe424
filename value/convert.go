package value

import (
	"strconv"
	"strings"
)

// NumberToString implements the canonical number formatter referenced by
// spec §8's round-trip law ("Number → string → number is identity").
// Integral doubles print without a decimal point; everything else uses
// Go's shortest round-tripping decimal (strconv's 'g' with precision -1),
// which is locale-independent the way the VM's canonical formatter must
// be (spec §4.1).
func NumberToString(n float64) string {
	if n != n {
		return "nan"
	}
	if n > 0 && n-n != 0 {
		return "inf"
	}
	if n < 0 && n-n != 0 {
		return "-inf"
	}
	if f := float64(int64(n)); f == n && n == n {
		// Integral value: print without exponent/decimal noise.
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// StringToNumber implements spec §4.1's lexical number conversion: decimal
// literals, hex literals with an optional fractional part and binary
// ("p"/"P") exponent, and a locale-aware decimal-point fallback (here:
// accept both '.' and the sole alternative a libc locale would ever
// substitute, ',' ) when the primary parse fails.
func StringToNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	if n, ok := parseNumberLiteral(t); ok {
		return n, true
	}
	// Locale-aware fallback: some C libraries format/parse decimals with
	// a comma under certain locales. Substitute and retry once.
	if strings.Contains(t, ",") {
		alt := strings.Replace(t, ",", ".", 1)
		if n, ok := parseNumberLiteral(alt); ok {
			return n, true
		}
	}
	return 0, false
}

func parseNumberLiteral(t string) (float64, bool) {
	neg := false
	rest := t
	if strings.HasPrefix(rest, "+") {
		rest = rest[1:]
	} else if strings.HasPrefix(rest, "-") {
		neg = true
		rest = rest[1:]
	}
	if len(rest) > 1 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X') {
		n, ok := parseHexFloat(rest[2:])
		if !ok {
			return 0, false
		}
		if neg {
			n = -n
		}
		return n, true
	}
	n, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// parseHexFloat parses "<hexdigits>[.<hexdigits>][(p|P)[+-]<decdigits>]"
// per spec §4.1/§4.5 (hex literal with optional fractional and binary
// exponent). Plain "strconv.ParseFloat" handles Go's "0x1.8p3" syntax
// directly, but we implement it by hand so integer-only hex literals
// without a "p" exponent (e.g. "0x1A") are also accepted, which
// strconv's hex-float parser rejects.
func parseHexFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	i := 0
	mantissa := 0.0
	sawDigit := false
	for i < len(s) && isHexDigit(s[i]) {
		mantissa = mantissa*16 + float64(hexVal(s[i]))
		i++
		sawDigit = true
	}
	if i < len(s) && s[i] == '.' {
		i++
		frac := 1.0 / 16.0
		for i < len(s) && isHexDigit(s[i]) {
			mantissa += float64(hexVal(s[i])) * frac
			frac /= 16.0
			i++
			sawDigit = true
		}
	}
	if !sawDigit {
		return 0, false
	}
	exp := 0
	if i < len(s) && (s[i] == 'p' || s[i] == 'P') {
		i++
		expNeg := false
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			expNeg = s[i] == '-'
			i++
		}
		if i >= len(s) {
			return 0, false
		}
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			exp = exp*10 + int(s[i]-'0')
			i++
		}
		if expNeg {
			exp = -exp
		}
	}
	if i != len(s) {
		return 0, false
	}
	for exp > 0 {
		mantissa *= 2
		exp--
	}
	for exp < 0 {
		mantissa /= 2
		exp++
	}
	return mantissa, true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}

// QuoteString implements SPEC_FULL.md §D.3: %q-style quoting for error
// messages and tostring() on strings with control bytes.
func QuoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 32 || c == 127 {
				b.WriteByte('\\')
				b.WriteString(strconv.Itoa(int(c)))
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
