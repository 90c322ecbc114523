package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseUint parses an unsigned value. Tokens longer than two characters whose
// second character is 'x' are hexadecimal, everything else is decimal.
func ParseUint(s string) (uint64, error) {
	if len(s) > 2 && (s[1] == 'x' || s[1] == 'X') {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("parse hex %q: %w", s, err)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, nil
}

// ParseInt parses a signed value, accepting "0x10" and "-0x10" as hex.
func ParseInt(s string) (int64, error) {
	if len(s) > 2 && (s[1] == 'x' || s[2] == 'x') {
		neg := strings.HasPrefix(s, "-")
		digits := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
		digits = strings.TrimPrefix(digits, "0x")
		v, err := strconv.ParseInt(digits, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("parse hex %q: %w", s, err)
		}
		if neg {
			v = -v
		}
		return v, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, nil
}

// ParseBytes converts a data token into bytes. "0x"-prefixed tokens are read
// as hex digit pairs, other tokens as decimal digit pairs. With an odd digit
// count the first byte is formed from a single digit.
func ParseBytes(s string) ([]byte, error) {
	base := 10
	digits := s
	if len(s) > 2 && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		digits = s[2:]
	}
	if digits == "" {
		return nil, fmt.Errorf("parse bytes %q: no digits", s)
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(digits[i:i+2], base, 8)
		if err != nil {
			return nil, fmt.Errorf("parse bytes %q: %w", s, err)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// ParseBool accepts the integer forms used by configure ("0"/"1", any
// non-zero value is true) as well as "true"/"false".
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	v, err := ParseUint(s)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
