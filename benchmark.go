package main

import (
	"context"
	"flag"
	"math/rand"
	"sync"
	"time"

	"git.fiblab.net/sim/walkability/optimizer"
	"git.fiblab.net/sim/walkability/optimizer/exact"
	"git.fiblab.net/sim/walkability/optimizer/greedy"
	"git.fiblab.net/sim/walkability/optimizer/synth"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	benchmarkCount     = flag.Int("benchmark.count", 20, "the random instance count for benchmark")
	benchmarkSize      = flag.Int("benchmark.size", 12, "the grid width and height of each instance")
	benchmarkBudget    = flag.Int("benchmark.budget", 2, "the budget of every amenity type")
	benchmarkSeed      = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU       = flag.Int("benchmark.cpu", 1, "the instances solved concurrently")
	benchmarkTimeLimit = flag.Duration("benchmark.time_limit", 10*time.Second, "the exact solver time limit per instance")
)

type benchmarkStats struct {
	mu         sync.Mutex
	greedyTime time.Duration
	exactTime  time.Duration
	// 贪心目标值与精确解之比的累计
	ratio   float64
	optimal int
	solved  int
}

func runBenchmark(ctx context.Context) {
	log.Logger.SetLevel(logrus.WarnLevel)
	// 设置随机种子
	e := rand.New(rand.NewSource(*benchmarkSeed))
	seeds := make([]int64, *benchmarkCount)
	for i := range seeds {
		seeds[i] = e.Int63()
	}
	n := *benchmarkSize
	budgets := make(map[string]int)
	for _, name := range synth.DefaultCatalog().Names() {
		budgets[name] = *benchmarkBudget
	}

	// 开始benchmark
	start := time.Now()
	stats := &benchmarkStats{}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*benchmarkCPU, 1))
	for _, seed := range seeds {
		g.Go(func() error {
			p, err := synth.Grid(synth.GridConfig{
				Width: n, Height: n, Spacing: 150,
				Residentials: n * n / 4, Candidates: n * n / 8, Existing: 1, Capacity: 2,
				Budgets: budgets, AllowRepeat: true, Seed: seed,
			})
			if err != nil {
				return err
			}
			gr, err := greedy.New(greedy.Options{Workers: 1}).Run(ctx, p)
			if err != nil {
				log.Error("benchmark greedy failed, err:", err)
				return nil
			}
			ex, err := exact.New(exact.Options{
				TimeLimit: *benchmarkTimeLimit,
				WarmStart: gr.Allocation,
				Workers:   1,
			}).Run(ctx, p)
			if err != nil {
				log.Error("benchmark exact failed, err:", err)
				return nil
			}
			stats.mu.Lock()
			defer stats.mu.Unlock()
			stats.greedyTime += gr.Meta.WallTime
			stats.exactTime += ex.Meta.WallTime
			stats.solved++
			if ex.Meta.Status == optimizer.StatusOptimal {
				stats.optimal++
			}
			if ex.After.Objective > 0 {
				stats.ratio += gr.After.Objective / ex.After.Objective
			} else {
				stats.ratio++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("benchmark aborted: %v", err)
	}
	solved := max(stats.solved, 1)
	log.Error(
		"benchmark finished", "\n",
		"count:", *benchmarkCount, "\n",
		"time:", time.Since(start), "\n",
		"solved:", stats.solved, "\n",
		"optimal:", stats.optimal, "\n",
		"greedy avg:", stats.greedyTime/time.Duration(solved), "\n",
		"exact avg:", stats.exactTime/time.Duration(solved), "\n",
		"greedy/exact objective:", stats.ratio/float64(solved), "\n",
	)
}
