package exact

import (
	"context"
	"math"
	"runtime"
	"time"

	"git.fiblab.net/sim/walkability/metrics"
	"git.fiblab.net/sim/walkability/milp"
	"git.fiblab.net/sim/walkability/optimizer"
)

type Options struct {
	// 0 表示不限时
	TimeLimit time.Duration
	// 相对最优性gap
	Gap float64
	// 可选的初始可行解，例如贪心结果
	WarmStart *optimizer.Allocation
	// nil 时使用 milp.BranchAndBound
	Solver milp.Solver
	// 预计算最短路树的协程数
	Workers int
}

// Optimizer solves the allocation problem as a MILP and decodes the
// assignment into the same Allocation the greedy path produces.
type Optimizer struct {
	opts Options
}

func New(opts Options) *Optimizer {
	if opts.Solver == nil {
		opts.Solver = milp.BranchAndBound{}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Optimizer{opts: opts}
}

func (o *Optimizer) Name() string {
	return "exact"
}

func (o *Optimizer) Run(ctx context.Context, p *optimizer.Problem) (*optimizer.Result, error) {
	start := time.Now()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.Prepare(ctx, o.opts.Workers); err != nil {
		return nil, err
	}
	meta := optimizer.NewRunMetadata(o.Name())
	res := &optimizer.Result{Before: optimizer.Evaluate(p, nil)}
	meta.Baseline = res.Before.Objective

	f, err := build(ctx, p)
	if err != nil {
		return nil, err
	}
	solverOpts := milp.Options{TimeLimit: o.opts.TimeLimit, Gap: o.opts.Gap}
	if o.opts.WarmStart != nil {
		if err := p.CheckAllocation(o.opts.WarmStart); err != nil {
			log.Warnf("run %s: ignoring warm start: %v", meta.RunID, err)
		} else {
			solverOpts.Hint = f.hint(p, o.opts.WarmStart)
		}
	}
	log.Infof("run %s: solving %d variables, %d constraints, time limit %v, gap %g",
		meta.RunID, f.model.NumVars(), f.model.NumConstraints(), o.opts.TimeLimit, o.opts.Gap)
	sol, err := o.opts.Solver.Solve(ctx, f.model, solverOpts)
	if err != nil {
		return nil, err
	}

	meta.Nodes = sol.Nodes
	meta.Bound = sol.Bound
	meta.Gap = sol.Gap
	switch sol.Status {
	case milp.StatusOptimal:
		meta.Status = optimizer.StatusOptimal
	case milp.StatusFeasible:
		meta.Status = optimizer.StatusFeasible
	default:
		meta.Status = optimizer.StatusNoSolution
	}
	if sol.Status == milp.StatusNoSolution {
		// 时限内没有可行解，返回空分配
		log.Warnf("run %s: no solution within the time limit", meta.RunID)
		res.Allocation = optimizer.NewAllocation()
	} else {
		res.Allocation = f.decode(p, sol.Values)
	}
	if err := p.CheckAllocation(res.Allocation); err != nil {
		log.Errorf("run %s: decoded allocation: %v", meta.RunID, err)
		return nil, err
	}
	res.After = optimizer.Evaluate(p, res.Allocation)
	if sol.Status != milp.StatusNoSolution {
		if diff := math.Abs(res.After.Objective - sol.Objective); diff > 1e-6 {
			log.Warnf("run %s: solver objective %.9f differs from rescored objective %.9f",
				meta.RunID, sol.Objective, res.After.Objective)
		}
	}
	meta.Objective = res.After.Objective
	meta.WallTime = time.Since(start)
	res.Meta = meta

	metrics.Objective.WithLabelValues(o.Name()).Set(meta.Objective)
	metrics.Gap.Set(meta.Gap)
	metrics.RunDuration.WithLabelValues(o.Name(), string(meta.Status)).Observe(meta.WallTime.Seconds())
	log.Infof("run %s: status=%s objective %.4f -> %.4f gap=%.2e nodes=%d in %v",
		meta.RunID, meta.Status, meta.Baseline, meta.Objective, meta.Gap, meta.Nodes, meta.WallTime)
	return res, nil
}
