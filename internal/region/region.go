// Package region implements clock constraints and the region-index
// abstraction that the rest of the synthesis engine is built on: mapping a
// concrete, real-valued clock valuation to a small integer that captures
// everything a region-equivalent abstraction needs to know about it relative
// to a maximum constant K.
package region

import "fmt"

// Op is an atomic clock constraint comparator.
type Op int

const (
	Less Op = iota
	LessEqual
	Equal
	GreaterEqual
	Greater
)

func (o Op) String() string {
	switch o {
	case Less:
		return "<"
	case LessEqual:
		return "<="
	case Equal:
		return "=="
	case GreaterEqual:
		return ">="
	case Greater:
		return ">"
	default:
		return "?"
	}
}

// Constraint is an atomic clock constraint: OP against a non-negative
// integer comparand. It is satisfied by a valuation v iff v OP comparand
// holds.
type Constraint struct {
	Op        Op
	Comparand int
}

// Satisfied reports whether the valuation v satisfies the constraint.
func (c Constraint) Satisfied(v float64) bool {
	cm := float64(c.Comparand)
	switch c.Op {
	case Less:
		return v < cm
	case LessEqual:
		return v <= cm
	case Equal:
		return v == cm
	case GreaterEqual:
		return v >= cm
	case Greater:
		return v > cm
	default:
		panic(fmt.Sprintf("region: invalid Op %d", c.Op))
	}
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s %d", c.Op, c.Comparand)
}

// Index computes the region index of a clock valuation v relative to a
// maximum integer constant K:
//
//	0                 if v == 0
//	2*floor(v)        if v > 0, v is an integer, and v <= K
//	2*floor(v) + 1    if v has a non-zero fractional part and floor(v) < K
//	2K+1              if v > K
//
// The returned index is always in [0, 2K+1], and equals 2K+1 iff v > K.
func Index(v float64, K int) int {
	if v < 0 {
		panic("region: negative valuation")
	}
	if v > float64(K) {
		return 2*K + 1
	}
	if v == 0 {
		return 0
	}
	floor := int(v)
	frac := v - float64(floor)
	if frac == 0 {
		return 2 * floor
	}
	if floor < K {
		return 2*floor + 1
	}
	// floor == K and frac > 0: strictly greater than K.
	return 2*K + 1
}

// IsOverflow reports whether idx is the single "above K" class.
func IsOverflow(idx, K int) bool {
	return idx == 2*K+1
}

// IsPoint reports whether idx is a point region (an even index, i.e. an
// integer valuation), as opposed to an open region between two integers.
func IsPoint(idx int) bool {
	return idx%2 == 0
}

// Bounded is implemented by anything that can report every non-negative
// integer constant appearing in its own guards or intervals, so that
// MaxConstant can be computed without region depending on ta/mtl/ata.
type Bounded interface {
	Constants() []int
}

// MaxConstant returns the largest constant reported by any of bs, or 0 if
// none report any. This is K, per the GLOSSARY: "the maximum integer
// constant appearing in any guard / MTL interval."
func MaxConstant(bs ...Bounded) int {
	max := 0
	for _, b := range bs {
		for _, c := range b.Constants() {
			if c > max {
				max = c
			}
		}
	}
	return max
}
