package milp

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"time"

	"git.fiblab.net/sim/walkability/metrics"
	"git.fiblab.net/sim/walkability/network/algo"
)

const (
	intTol  = 1e-6
	hintTol = 1e-7
)

// BranchAndBound explores LP relaxations best-bound first, branching on the
// most fractional integer variable.
type BranchAndBound struct{}

type node struct {
	lower, upper []float64
	values       []float64
	bound        float64
}

type search struct {
	ctx   context.Context
	m     *Model
	opts  Options
	nodes []*node
	queue algo.PriorityQueue

	incumbent []float64
	incObj    float64
	// 根松弛已求解（或已证明不可行）时上界才有意义
	rootSolved bool
	// 有节点因LP数值问题被丢弃时不能声明最优
	unresolved bool
	explored   int
}

type relaxation struct {
	x   []float64
	obj float64
	err error
}

func (BranchAndBound) Solve(ctx context.Context, m *Model, opts Options) (*Solution, error) {
	start := time.Now()
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}
	s := &search{ctx: ctx, m: m, opts: opts, incObj: math.Inf(-1)}
	lower, upper := m.bounds()
	if opts.Hint != nil {
		s.tryHint(lower, upper)
	}

	limited := false
	root, err := s.evaluate(lower, upper)
	switch {
	case err == nil:
		s.rootSolved = true
		if root != nil {
			s.rounding(root)
			s.push(root)
		}
	case errors.Is(err, errInfeasible):
		s.rootSolved = true
	case errors.Is(err, context.DeadlineExceeded):
		limited = true
	default:
		return nil, err
	}

	for !limited && s.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			limited = true
			break
		}
		if s.closed() {
			break
		}
		item := heap.Pop(&s.queue).(*algo.Item)
		nd := s.nodes[item.Value]
		s.nodes[item.Value] = nil
		if s.dominated(nd.bound) {
			continue
		}
		s.explored++
		j := s.branchVar(nd.values)
		v := nd.values[j]
		// 下分支 x_j <= floor(v)，上分支 x_j >= ceil(v)
		downUpper := append([]float64(nil), nd.upper...)
		downUpper[j] = math.Floor(v)
		upLower := append([]float64(nil), nd.lower...)
		upLower[j] = math.Ceil(v)
		for _, b := range [][2][]float64{{nd.lower, downUpper}, {upLower, nd.upper}} {
			child, err := s.evaluate(b[0], b[1])
			if err != nil {
				switch {
				case errors.Is(err, errInfeasible):
				case errors.Is(err, context.Canceled):
					return nil, err
				case errors.Is(err, context.DeadlineExceeded):
					limited = true
				default:
					log.Warnf("dropping node after relaxation error: %v", err)
					s.unresolved = true
				}
				if limited {
					break
				}
				continue
			}
			if child != nil {
				if s.explored%16 == 0 {
					s.rounding(child)
				}
				s.push(child)
			}
		}
		if limited {
			// 未完成的节点放回队列，上界仍然有效
			s.push(nd)
		}
	}
	metrics.SolverNodes.Add(float64(s.explored))

	sol := &Solution{Nodes: s.explored, Bound: s.incObj}
	switch {
	case !s.rootSolved:
		sol.Bound = math.Inf(1)
	case s.queue.Len() > 0:
		sol.Bound = math.Max(s.incObj, -s.queue[0].Priority)
	}
	if s.incumbent == nil {
		sol.Status = StatusNoSolution
		if limited {
			log.Warnf("no feasible solution within %v after %d nodes", opts.TimeLimit, s.explored)
		}
		return sol, nil
	}
	sol.Values = s.incumbent
	sol.Objective = s.incObj
	sol.Gap = relativeGap(sol.Bound, s.incObj)
	// 队列耗尽或剩余节点都在gap内才算证明最优
	if limited || s.unresolved {
		sol.Status = StatusFeasible
	} else {
		sol.Status = StatusOptimal
	}
	log.Debugf("branch-and-bound: status=%v objective=%.6f bound=%.6f gap=%.2e nodes=%d in %v",
		sol.Status, sol.Objective, sol.Bound, sol.Gap, sol.Nodes, time.Since(start))
	return sol, nil
}

func relativeGap(bound, obj float64) float64 {
	if bound <= obj {
		return 0
	}
	return (bound - obj) / math.Max(math.Abs(obj), 1e-9)
}

// relax runs one relaxation and gives up at the deadline. The simplex
// cannot be interrupted, so an abandoned run finishes in the background and
// its result is dropped.
func (s *search) relax(lower, upper []float64) ([]float64, float64, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, 0, err
	}
	done := make(chan relaxation, 1)
	go func() {
		x, obj, err := s.m.relax(lower, upper)
		done <- relaxation{x: x, obj: obj, err: err}
	}()
	select {
	case r := <-done:
		return r.x, r.obj, r.err
	case <-s.ctx.Done():
		return nil, 0, s.ctx.Err()
	}
}

// evaluate solves a relaxation; integral solutions update the incumbent and
// give a nil node.
func (s *search) evaluate(lower, upper []float64) (*node, error) {
	x, obj, err := s.relax(lower, upper)
	if err != nil {
		return nil, err
	}
	if s.dominated(obj) {
		return nil, nil
	}
	if s.fractional(x) < 0 {
		s.accept(x)
		return nil, nil
	}
	return &node{lower: lower, upper: upper, values: x, bound: obj}, nil
}

func (s *search) push(nd *node) {
	s.nodes = append(s.nodes, nd)
	heap.Push(&s.queue, &algo.Item{Value: len(s.nodes) - 1, Priority: -nd.bound})
}

// dominated reports whether a bound cannot beat the incumbent by more than
// the gap tolerance.
func (s *search) dominated(bound float64) bool {
	if s.incumbent == nil {
		return false
	}
	tol := math.Max(1e-9, s.opts.Gap*math.Abs(s.incObj))
	return bound <= s.incObj+tol
}

// closed reports whether the best open bound is already within the gap.
func (s *search) closed() bool {
	return s.incumbent != nil && s.dominated(-s.queue[0].Priority)
}

func (s *search) accept(x []float64) {
	y := append([]float64(nil), x...)
	for j, v := range s.m.vars {
		if v.integer {
			y[j] = math.Round(y[j])
		}
	}
	obj := s.m.Evaluate(y)
	if obj > s.incObj {
		s.incumbent, s.incObj = y, obj
		log.Debugf("new incumbent %.6f", obj)
	}
}

// fractional returns the most fractional integer variable, -1 if none.
func (s *search) fractional(x []float64) int {
	best, bestScore := -1, intTol
	for j, v := range s.m.vars {
		if !v.integer {
			continue
		}
		f := x[j] - math.Floor(x[j])
		if score := math.Min(f, 1-f); score > bestScore {
			best, bestScore = j, score
		}
	}
	return best
}

func (s *search) branchVar(x []float64) int {
	j := s.fractional(x)
	if j < 0 {
		log.Panicf("branching on an integral node")
	}
	return j
}

// rounding fixes every integer variable to the floor of its relaxed value and
// re-solves for the continuous part.
func (s *search) rounding(nd *node) {
	lower := append([]float64(nil), nd.lower...)
	upper := append([]float64(nil), nd.upper...)
	for j, v := range s.m.vars {
		if v.integer {
			f := math.Max(math.Floor(nd.values[j]+intTol), lower[j])
			lower[j], upper[j] = f, f
		}
	}
	x, _, err := s.relax(lower, upper)
	if err == nil {
		s.accept(x)
	}
}

// tryHint keeps a feasible hint as the first incumbent. Otherwise it fixes
// the integer variables to the hint and solves for the continuous part.
func (s *search) tryHint(lower, upper []float64) {
	if len(s.opts.Hint) != len(s.m.vars) {
		log.Warnf("ignoring hint of length %d for %d variables", len(s.opts.Hint), len(s.m.vars))
		return
	}
	if s.m.Feasible(s.opts.Hint, hintTol) {
		s.accept(s.opts.Hint)
		return
	}
	lo := append([]float64(nil), lower...)
	up := append([]float64(nil), upper...)
	for j, v := range s.m.vars {
		if v.integer {
			h := math.Round(s.opts.Hint[j])
			if h < lower[j] || h > upper[j] {
				log.Warnf("hint for %s out of bounds, ignored", v.name)
				return
			}
			lo[j], up[j] = h, h
		}
	}
	x, _, err := s.relax(lo, up)
	if err != nil {
		log.Warnf("hint is not feasible: %v", err)
		return
	}
	s.accept(x)
}
