package walkscore

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrMalformedTable = errors.New("malformed scoring table")

// PWL is the piecewise-linear distance decay curve.
type PWL struct {
	breakpoints []float64
	scores      []float64
	radius      float64
}

// NewPWL checks the breakpoint/score table once; the curve is trusted afterwards.
func NewPWL(breakpoints, scores []float64) (*PWL, error) {
	if len(breakpoints) != len(scores) {
		return nil, fmt.Errorf("%w: %d breakpoints but %d scores", ErrMalformedTable, len(breakpoints), len(scores))
	}
	if len(breakpoints) < 2 {
		return nil, fmt.Errorf("%w: at least 2 breakpoints required", ErrMalformedTable)
	}
	if breakpoints[0] != 0 {
		return nil, fmt.Errorf("%w: first breakpoint must be 0, got %v", ErrMalformedTable, breakpoints[0])
	}
	for i := range breakpoints {
		if math.IsNaN(breakpoints[i]) || math.IsInf(breakpoints[i], 0) {
			return nil, fmt.Errorf("%w: breakpoint %d is %v", ErrMalformedTable, i, breakpoints[i])
		}
		if scores[i] < 0 || scores[i] > 100 || math.IsNaN(scores[i]) {
			return nil, fmt.Errorf("%w: score %d=%v out of [0,100]", ErrMalformedTable, i, scores[i])
		}
		if i == 0 {
			continue
		}
		if breakpoints[i] <= breakpoints[i-1] {
			return nil, fmt.Errorf("%w: breakpoints not strictly increasing at %d", ErrMalformedTable, i)
		}
		if scores[i] > scores[i-1] {
			return nil, fmt.Errorf("%w: scores increase at %d (%v > %v)", ErrMalformedTable, i, scores[i], scores[i-1])
		}
	}
	p := &PWL{
		breakpoints: append([]float64(nil), breakpoints...),
		scores:      append([]float64(nil), scores...),
		radius:      math.Inf(0),
	}
	// 分数非增，第一个0分断点之后恒为0
	for i, s := range p.scores {
		if s == 0 {
			p.radius = p.breakpoints[i]
			break
		}
	}
	return p, nil
}

func (p *PWL) Score(d float64) float64 {
	if d < 0 || math.IsNaN(d) {
		log.Panicf("negative distance %v", d)
	}
	n := len(p.breakpoints)
	if d >= p.breakpoints[n-1] {
		return p.scores[n-1]
	}
	i := sort.SearchFloat64s(p.breakpoints, d)
	if p.breakpoints[i] == d {
		return p.scores[i]
	}
	d0, d1 := p.breakpoints[i-1], p.breakpoints[i]
	s0, s1 := p.scores[i-1], p.scores[i]
	return s0 + (s1-s0)*(d-d0)/(d1-d0)
}

// Radius is the distance from which every score is zero, +Inf if the curve
// never reaches zero. Nothing at or beyond it can change a contribution.
func (p *PWL) Radius() float64 {
	return p.radius
}

func (p *PWL) MaxBreakpoint() float64 {
	return p.breakpoints[len(p.breakpoints)-1]
}

func (p *PWL) Breakpoints() []float64 {
	return append([]float64(nil), p.breakpoints...)
}

func (p *PWL) Scores() []float64 {
	return append([]float64(nil), p.scores...)
}
