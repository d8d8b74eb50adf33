package greedy

import (
	"context"
	"math"
	"runtime"
	"time"

	"git.fiblab.net/sim/walkability/metrics"
	"git.fiblab.net/sim/walkability/optimizer"
	"golang.org/x/sync/errgroup"
)

// 绝对值小于该阈值的负增益视为数值误差
const gainTolerance = 1e-9

type Options struct {
	Order Order
	// 最优增益为0时停止该类型，默认继续分配直到预算用完
	StopOnZeroGain bool
	// 并行计算增益的协程数，<=0 表示CPU数
	Workers int
}

// Allocator is the incremental greedy heuristic.
type Allocator struct {
	opts Options
}

func New(opts Options) *Allocator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Allocator{opts: opts}
}

func (g *Allocator) Name() string {
	return "greedy"
}

type choice struct {
	typ  int
	site int64
	gain float64
}

type run struct {
	ctx   context.Context
	opts  Options
	state *optimizer.State
	steps []optimizer.Step
}

func (g *Allocator) Run(ctx context.Context, p *optimizer.Problem) (*optimizer.Result, error) {
	start := time.Now()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	state, err := optimizer.NewState(ctx, p, g.opts.Workers)
	if err != nil {
		return nil, err
	}
	meta := optimizer.NewRunMetadata(g.Name())
	res := &optimizer.Result{Before: optimizer.Evaluate(p, nil)}
	meta.Baseline = res.Before.Objective
	log.Infof("run %s: order=%v baseline=%.4f", meta.RunID, g.opts.Order, meta.Baseline)

	r := &run{ctx: ctx, opts: g.opts, state: state}
	switch g.opts.Order {
	case OrderRoundRobin:
		err = r.roundRobin()
	case OrderSequential:
		err = r.sequential()
	case OrderBestPair:
		err = r.bestPair()
	default:
		log.Panicf("unknown order %v", g.opts.Order)
	}
	if err != nil {
		return nil, err
	}

	res.Allocation = state.Allocation().Clone()
	res.Steps = r.steps
	if err := p.CheckAllocation(res.Allocation); err != nil {
		log.Errorf("run %s: %v", meta.RunID, err)
		return nil, err
	}
	res.After = optimizer.Evaluate(p, res.Allocation)
	if diff := math.Abs(res.After.Objective - state.Objective()); diff > 1e-6 {
		log.Warnf("run %s: incremental objective %.9f differs from full rescoring %.9f",
			meta.RunID, state.Objective(), res.After.Objective)
	}
	meta.Objective = res.After.Objective
	meta.Status = optimizer.StatusHeuristic
	meta.WallTime = time.Since(start)
	res.Meta = meta

	metrics.Objective.WithLabelValues(g.Name()).Set(meta.Objective)
	metrics.RunDuration.WithLabelValues(g.Name(), string(meta.Status)).Observe(meta.WallTime.Seconds())
	log.Infof("run %s: %d units placed, objective %.4f -> %.4f in %v",
		meta.RunID, res.Allocation.Total(), meta.Baseline, meta.Objective, meta.WallTime)
	return res, nil
}

func (r *run) sequential() error {
	for a := range r.state.Types() {
		for {
			ok, err := r.step(a)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
		}
	}
	return nil
}

func (r *run) roundRobin() error {
	types := r.state.Types()
	done := make([]bool, len(types))
	for active := len(types); active > 0; {
		for a := range types {
			if done[a] {
				continue
			}
			ok, err := r.step(a)
			if err != nil {
				return err
			}
			if !ok {
				done[a] = true
				active--
			}
		}
	}
	return nil
}

// bestPair commits the global best (type, site) each step; ties go to the
// earlier type in catalog order, then the lower site id.
func (r *run) bestPair() error {
	for {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		var best choice
		found := false
		for a := range r.state.Types() {
			c, ok, err := r.best(a)
			if err != nil {
				return err
			}
			if ok && (!found || c.gain > best.gain) {
				best, found = c, true
			}
		}
		if !found {
			return nil
		}
		if best.gain == 0 && r.opts.StopOnZeroGain {
			log.Infof("best gain is zero after %d steps, stopping", len(r.steps))
			return nil
		}
		if err := r.commit(best); err != nil {
			return err
		}
	}
}

// step places one unit of type a; false means the type is finished.
func (r *run) step(a int) (bool, error) {
	if err := r.ctx.Err(); err != nil {
		return false, err
	}
	c, ok, err := r.best(a)
	if err != nil || !ok {
		return false, err
	}
	if c.gain == 0 && r.opts.StopOnZeroGain {
		log.Infof("best gain of %s is zero, stopping the type", r.state.Types()[a].Name())
		return false, nil
	}
	return true, r.commit(c)
}

// best evaluates every eligible site against the frozen state. Sites are
// ascending and only a strictly larger gain replaces the incumbent.
func (r *run) best(a int) (choice, bool, error) {
	sites := r.state.Eligible(a)
	if len(sites) == 0 {
		return choice{}, false, nil
	}
	gains := make([]float64, len(sites))
	chunk := (len(sites) + r.opts.Workers - 1) / r.opts.Workers
	g, ctx := errgroup.WithContext(r.ctx)
	g.SetLimit(r.opts.Workers)
	for lo := 0; lo < len(sites); lo += chunk {
		hi := min(lo+chunk, len(sites))
		g.Go(func() error {
			for k := lo; k < hi; k++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				gains[k] = r.state.Gain(a, sites[k])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return choice{}, false, err
	}
	metrics.GainEvaluations.Add(float64(len(sites)))

	best := choice{typ: a, site: sites[0], gain: normalize(gains[0])}
	for k := 1; k < len(sites); k++ {
		if gain := normalize(gains[k]); gain > best.gain {
			best = choice{typ: a, site: sites[k], gain: gain}
		}
	}
	return best, true, nil
}

func normalize(gain float64) float64 {
	if gain < 0 && gain > -gainTolerance {
		return 0
	}
	return gain
}

func (r *run) commit(c choice) error {
	name := r.state.Types()[c.typ].Name()
	prev := r.state.Objective()
	if c.gain < 0 {
		return r.defect(name, c.site, c.gain, prev)
	}
	gain := r.state.Apply(c.typ, c.site)
	if r.state.Objective() < prev-gainTolerance {
		return r.defect(name, c.site, gain, r.state.Objective())
	}
	step := optimizer.Step{
		Index:     len(r.steps) + 1,
		Type:      name,
		Site:      c.site,
		Gain:      gain,
		Objective: r.state.Objective(),
	}
	r.steps = append(r.steps, step)
	metrics.GreedySteps.WithLabelValues(name).Inc()
	log.Debugf("step %d: %s at %d, gain=%.6f objective=%.6f", step.Index, name, c.site, gain, step.Objective)
	return nil
}

func (r *run) defect(name string, site int64, gain, objective float64) error {
	err := &optimizer.DefectError{
		Step:      len(r.steps) + 1,
		Type:      name,
		Site:      site,
		Gain:      gain,
		Objective: objective,
		Err:       optimizer.ErrNonMonotonic,
	}
	log.Error(err)
	return err
}
