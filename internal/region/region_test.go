package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Index(t *testing.T) {
	testCases := []struct {
		name   string
		v      float64
		K      int
		expect int
	}{
		{name: "zero valuation", v: 0, K: 3, expect: 0},
		{name: "integer valuation within K", v: 2, K: 3, expect: 4},
		{name: "integer valuation equal to K", v: 3, K: 3, expect: 6},
		{name: "fractional valuation, floor below K", v: 1.5, K: 3, expect: 3},
		{name: "fractional valuation, floor == K-1", v: 2.25, K: 3, expect: 5},
		{name: "fractional valuation, floor == K is overflow", v: 3.1, K: 3, expect: 7},
		{name: "valuation strictly greater than K", v: 4, K: 3, expect: 7},
		{name: "valuation far greater than K", v: 100, K: 3, expect: 7},
		{name: "K == 0, zero valuation", v: 0, K: 0, expect: 0},
		{name: "K == 0, any positive valuation is overflow", v: 0.5, K: 0, expect: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			actual := Index(tc.v, tc.K)
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_Index_universalInvariant(t *testing.T) {
	assert := assert.New(t)

	for K := 1; K <= 5; K++ {
		for tenths := 0; tenths <= (K+2)*10; tenths++ {
			v := float64(tenths) / 10.0
			idx := Index(v, K)

			assert.GreaterOrEqualf(idx, 0, "K=%d v=%v", K, v)
			assert.LessOrEqualf(idx, 2*K+1, "K=%d v=%v", K, v)

			isOverflow := idx == 2*K+1
			expectOverflow := v > float64(K)
			assert.Equalf(expectOverflow, isOverflow, "K=%d v=%v idx=%d", K, v, idx)
		}
	}
}

func Test_Constraint_Satisfied(t *testing.T) {
	testCases := []struct {
		name   string
		c      Constraint
		v      float64
		expect bool
	}{
		{name: "less, satisfied", c: Constraint{Op: Less, Comparand: 2}, v: 1, expect: true},
		{name: "less, not satisfied at boundary", c: Constraint{Op: Less, Comparand: 2}, v: 2, expect: false},
		{name: "less-equal, satisfied at boundary", c: Constraint{Op: LessEqual, Comparand: 2}, v: 2, expect: true},
		{name: "equal, satisfied", c: Constraint{Op: Equal, Comparand: 2}, v: 2, expect: true},
		{name: "equal, not satisfied", c: Constraint{Op: Equal, Comparand: 2}, v: 2.5, expect: false},
		{name: "greater-equal, satisfied at boundary", c: Constraint{Op: GreaterEqual, Comparand: 2}, v: 2, expect: true},
		{name: "greater, not satisfied at boundary", c: Constraint{Op: Greater, Comparand: 2}, v: 2, expect: false},
		{name: "greater, satisfied", c: Constraint{Op: Greater, Comparand: 2}, v: 2.1, expect: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tc.expect, tc.c.Satisfied(tc.v))
		})
	}
}

type fakeBounded struct {
	cs []int
}

func (f fakeBounded) Constants() []int {
	return f.cs
}

func Test_MaxConstant(t *testing.T) {
	assert := assert.New(t)

	got := MaxConstant(fakeBounded{[]int{1, 5, 2}}, fakeBounded{[]int{3}}, fakeBounded{nil})
	assert.Equal(5, got)

	assert.Equal(0, MaxConstant())
}

func Test_IsPoint(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsPoint(0))
	assert.False(IsPoint(1))
	assert.True(IsPoint(4))
	assert.False(IsPoint(5))
}
