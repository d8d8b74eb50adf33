package main

import (
	"context"
	"fmt"
	"sync"

	"git.fiblab.net/sim/walkability/optimizer"
	"git.fiblab.net/sim/walkability/optimizer/exact"
	"git.fiblab.net/sim/walkability/optimizer/greedy"
	"git.fiblab.net/sim/walkability/scenario"
)

const (
	algoGreedy = "greedy"
	algoExact  = "exact"
	algoBoth   = "both"
)

// Planner loads one scenario and runs the allocators on it.
type Planner struct {
	store    *scenario.Store
	scenario *scenario.Scenario
	output   *scenario.Path
	workers  int

	// 同一时刻只允许一个运行
	mu sync.Mutex
}

func NewPlanner(
	ctx context.Context,
	mongoURI string,
	scenarioPath, outputPath *scenario.Path,
	workers int,
) (*Planner, error) {
	store := scenario.NewStore(mongoURI)
	doc, err := store.Load(ctx, scenarioPath)
	if err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("load scenario from %s: %w", scenarioPath, err)
	}
	s, err := doc.Build()
	if err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("build scenario %s: %w", doc.Name, err)
	}
	s.Greedy.Workers = workers
	s.Exact.Workers = workers
	// 所有算法共享的最短路树
	if err := s.Problem.Prepare(ctx, workers); err != nil {
		store.Close(ctx)
		return nil, err
	}
	log.Infof("scenario %s ready, %d distance trees cached", s.Name, s.Cache.Sources())
	return &Planner{
		store:    store,
		scenario: s,
		output:   outputPath,
		workers:  workers,
	}, nil
}

func (p *Planner) allocators(algo string) ([]optimizer.Allocator, error) {
	switch algo {
	case algoGreedy:
		return []optimizer.Allocator{greedy.New(p.scenario.Greedy)}, nil
	case algoExact:
		return []optimizer.Allocator{exact.New(p.scenario.Exact)}, nil
	case algoBoth:
		return []optimizer.Allocator{greedy.New(p.scenario.Greedy), exact.New(p.scenario.Exact)}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm: %q", algo)
	}
}

// Run executes the selected algorithms in order. With "both" and warm start
// enabled the exact run starts from the greedy allocation.
func (p *Planner) Run(ctx context.Context, algo string) ([]*optimizer.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	allocators, err := p.allocators(algo)
	if err != nil {
		return nil, err
	}
	results := make([]*optimizer.Result, 0, len(allocators))
	var warm *optimizer.Allocation
	for _, a := range allocators {
		if warm != nil && p.scenario.WarmStart && a.Name() == algoExact {
			opts := p.scenario.Exact
			opts.WarmStart = warm
			a = exact.New(opts)
		}
		res, err := a.Run(ctx, p.scenario.Problem)
		if err != nil {
			return results, fmt.Errorf("%s: %w", a.Name(), err)
		}
		if a.Name() == algoGreedy {
			warm = res.Allocation
		}
		log.Infof("%s on %s: objective %.4f -> %.4f (+%.4f), %d units placed",
			a.Name(), p.scenario.Name, res.Before.Objective, res.After.Objective,
			res.Improvement(), res.Allocation.Total())
		results = append(results, res)
	}
	if p.output != nil {
		reports := make([]*scenario.Report, len(results))
		for i, res := range results {
			reports[i] = scenario.NewReport(p.scenario, res)
			if !reports[i].Success.Passed {
				log.Warnf("%s on %s misses the success criteria: coverage %v, increase %v",
					res.Meta.Algorithm, p.scenario.Name, reports[i].Success.Coverage, reports[i].Success.Increase)
			}
		}
		if err := p.store.SaveReports(ctx, p.output, reports); err != nil {
			return results, fmt.Errorf("save reports to %s: %w", p.output, err)
		}
	}
	return results, nil
}

func (p *Planner) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scenario.Cache.Release()
	if err := p.store.Close(context.Background()); err != nil {
		log.Warnf("failed to close store: %v", err)
	}
}
