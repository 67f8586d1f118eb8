package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"unicode"
)

const lenientIntLimit = math.MaxInt32

// LenientInt coerces a raw JSON value to an integer. Numbers are truncated
// toward zero, strings are read up to the first non-digit (a leading 0x
// switches to hex), and every other type reports ok=false. It never fails.
func LenientInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}

	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil || math.IsNaN(f) || math.Abs(f) > lenientIntLimit {
			return 0, false
		}
		return int(math.Trunc(f)), true
	case string:
		return leadingInt(t)
	default:
		return 0, false
	}
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	sign := 1
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}

	base := 10
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}

	n, digits := 0, 0
	for _, r := range s {
		d := digitValue(r)
		if d < 0 || d >= base {
			break
		}
		n = n*base + d
		digits++
		if n > lenientIntLimit {
			return 0, false
		}
	}
	if digits == 0 {
		return 0, false
	}
	return sign * n, true
}

func digitValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10
	default:
		return -1
	}
}
