package blocksize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// suffixes maps dd size suffixes to multipliers. Lowercase single letters
// and "kB"-style decimal forms follow the historical dd grammar, which is
// not the IEC/SI grammar general-purpose parsers accept: `b` is a 512-byte
// block, `w` a two-byte word, `c` a single byte, and `xM` an alias for `M`.
var suffixes = map[string]uint64{
	"":   1,
	"c":  1,
	"w":  2,
	"b":  512,
	"kB": 1000,
	"K":  1024,
	"k":  1024,
	"MB": 1000 * 1000,
	"M":  1024 * 1024,
	"xM": 1024 * 1024,
	"GB": 1000 * 1000 * 1000,
	"G":  1024 * 1024 * 1024,
	"TB": 1000 * 1000 * 1000 * 1000,
	"T":  1024 * 1024 * 1024 * 1024,
	"PB": 1000 * 1000 * 1000 * 1000 * 1000,
	"P":  1024 * 1024 * 1024 * 1024 * 1024,
	"EB": 1000 * 1000 * 1000 * 1000 * 1000 * 1000,
	"E":  1024 * 1024 * 1024 * 1024 * 1024 * 1024,
	// The table ends at exabytes: the Z and Y multipliers do not fit in a
	// uint64, so those suffixes are rejected as unknown.
}

// Parse interprets a dd-style size operand such as "512", "1K", "4M" or
// "2b" and returns the byte value.
func Parse(s string) (uint64, error) {
	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, fmt.Errorf("invalid size %q: no digits", s)
	}

	n, err := strconv.ParseUint(s[:digits], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	suffix := strings.TrimSpace(s[digits:])
	mult, ok := suffixes[suffix]
	if !ok {
		return 0, fmt.Errorf("invalid size %q: unknown suffix %q", s, suffix)
	}

	if n != 0 && mult > math.MaxUint64/n {
		return 0, fmt.Errorf("invalid size %q: value overflows", s)
	}
	return n * mult, nil
}

// ParseBlockSize is Parse restricted to positive values that fit an int,
// for the ibs/obs/cbs operands.
func ParseBlockSize(s string) (int, error) {
	n, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid size %q: must be positive", s)
	}
	if n > math.MaxInt {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}
	return int(n), nil
}
