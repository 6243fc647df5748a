package services

import (
	"math"
	"strings"
)

// MaxOrderKey is the open upper bound of the key space. Keys live in (0, MaxOrderKey).
const MaxOrderKey = math.MaxFloat64 - 1

type RelativePosition int

const (
	PositionLastChild RelativePosition = iota + 1
	PositionAbove
	PositionBelow
)

func (p RelativePosition) String() string {
	switch p {
	case PositionLastChild:
		return "LAST_CHILD"
	case PositionAbove:
		return "ABOVE"
	case PositionBelow:
		return "BELOW"
	default:
		return "UNKNOWN"
	}
}

func (p RelativePosition) Valid() bool {
	return p >= PositionLastChild && p <= PositionBelow
}

// ParseRelativePosition accepts LAST_CHILD, ABOVE and BELOW (case-insensitive).
// An empty value means LAST_CHILD.
func ParseRelativePosition(v string) (RelativePosition, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", "LAST_CHILD":
		return PositionLastChild, nil
	case "ABOVE":
		return PositionAbove, nil
	case "BELOW":
		return PositionBelow, nil
	default:
		return 0, newPositionError(KindInvalidPosition, nil, "unknown relative position "+v, nil)
	}
}

// AllocateOrderKey returns a key between lower and upper. A nil bound means the
// open end of the key space. The halves are summed separately so the result
// never overflows near MaxOrderKey.
func AllocateOrderKey(lower, upper *float64) float64 {
	lo := boundOrDefault(lower, 0)
	hi := boundOrDefault(upper, MaxOrderKey)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo/2 + hi/2
}

// Corrupt bounds (NaN, infinities, negatives) fall back to the open end.
func boundOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	k := *v
	if math.IsNaN(k) || math.IsInf(k, 0) || k < 0 {
		return def
	}
	return k
}

// IsStrictlyBetween reports whether k sorts strictly inside the interval
// AllocateOrderKey was given. False means the gap is exhausted and k ties with
// a neighbour.
func IsStrictlyBetween(k float64, lower, upper *float64) bool {
	lo := boundOrDefault(lower, 0)
	hi := boundOrDefault(upper, MaxOrderKey)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo < k && k < hi
}

// SiblingBounds returns the neighbour keys around siblings[index] for the
// requested side. For PositionLastChild index is ignored and the new key goes
// after the last sibling.
func SiblingBounds(siblings []Node, index int, pos RelativePosition) (lower, upper *float64) {
	keyAt := func(i int) *float64 {
		k := siblings[i].OrderKey
		return &k
	}
	switch pos {
	case PositionAbove:
		upper = keyAt(index)
		if index > 0 {
			lower = keyAt(index - 1)
		}
	case PositionBelow:
		lower = keyAt(index)
		if index+1 < len(siblings) {
			upper = keyAt(index + 1)
		}
	default:
		if len(siblings) > 0 {
			lower = keyAt(len(siblings) - 1)
		}
	}
	return lower, upper
}
