// Package mathx holds small generic helpers for register arithmetic.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. lo must not exceed hi.
func Clamp[T constraints.Ordered](v, lo, hi T) T { return max(lo, min(v, hi)) }

// Between reports whether lo <= v <= hi.
func Between[T constraints.Ordered](v, lo, hi T) bool { return lo <= v && v <= hi }

// U8 saturates v into the range of an 8-bit register.
func U8[T constraints.Integer](v T) uint8 {
	if v < 0 {
		return 0
	}
	if uint64(v) > 0xFF {
		return 0xFF
	}
	return uint8(v)
}
