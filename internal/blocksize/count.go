// Package blocksize holds the count-limit arithmetic shared by the copy
// loop: the tagged count value, the shared-buffer sizing, and the dd
// byte-suffix parser.
package blocksize

import "github.com/bamsammich/blit/internal/stats"

// Count is an optional transfer limit expressed either in whole input
// blocks or in raw bytes. A nil *Count means no limit.
type Count struct {
	N     uint64
	Bytes bool
}

// Blocks returns a block-denominated count.
func Blocks(n uint64) *Count { return &Count{N: n} }

// BytesCount returns a byte-denominated count.
func BytesCount(n uint64) *Count { return &Count{N: n, Bytes: true} }

// ToBytes resolves the count to an absolute byte total. Performed exactly
// once, after block sizes are known.
func (c *Count) ToBytes(ibs uint64) uint64 {
	if c.Bytes {
		return c.N
	}
	return c.N * ibs
}

// BelowLimit reports whether another iteration is allowed under the limit.
// A nil count never limits.
func BelowLimit(count *Count, r stats.ReadStat) bool {
	if count == nil {
		return true
	}
	if count.Bytes {
		return r.BytesRead < count.N
	}
	return r.Blocks() < count.N
}

// IdealSize returns the least common multiple of the two block sizes: the
// smallest buffer that is an integral multiple of both.
func IdealSize(ibs, obs int) int {
	return ibs / gcd(ibs, obs) * obs
}

// LoopSize caps the next iteration's buffer so the transfer can never
// overshoot an active count limit. With no limit it returns ideal.
func LoopSize(count *Count, r stats.ReadStat, w stats.WriteStat, ibs, ideal int) int {
	if count == nil {
		return ideal
	}
	var limit uint64
	if count.Bytes {
		if w.BytesWritten >= count.N {
			return 0
		}
		limit = count.N - w.BytesWritten
	} else {
		blocks := r.Blocks()
		if blocks >= count.N {
			return 0
		}
		limit = (count.N - blocks) * uint64(ibs)
	}
	if limit < uint64(ideal) {
		return int(limit)
	}
	return ideal
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
