package exact_test

import (
	"context"
	"testing"
	"time"

	"git.fiblab.net/sim/walkability/milp"
	"git.fiblab.net/sim/walkability/optimizer"
	"git.fiblab.net/sim/walkability/optimizer/exact"
	"git.fiblab.net/sim/walkability/optimizer/greedy"
	"git.fiblab.net/sim/walkability/optimizer/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func small(t *testing.T, budgets map[string]int, seed int64) *optimizer.Problem {
	p, err := synth.Grid(synth.GridConfig{
		Width: 6, Height: 6, Spacing: 200,
		Residentials: 6, Candidates: 4, Existing: 1, Capacity: 1,
		Budgets: budgets, Seed: seed,
	})
	require.NoError(t, err)
	return p
}

func TestGroceryScenario(t *testing.T) {
	p, err := synth.Grocery()
	require.NoError(t, err)
	res, err := exact.New(exact.Options{}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, optimizer.StatusOptimal, res.Meta.Status)
	assert.Equal(t, []optimizer.Entry{{Site: 11, Type: "grocery", Count: 1}}, res.Allocation.Entries())
	assert.InDelta(t, 92.5, res.After.Objective, 1e-6)
	assert.InDelta(t, 92.5, res.Meta.Objective, 1e-6)
	assert.Equal(t, "exact", res.Meta.Algorithm)
	assert.Equal(t, 0.0, res.Meta.Baseline)
}

func TestExactDominatesGreedy(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		budgets := map[string]int{"grocery": 1, "school": 1, "restaurant": 2}
		g, err := greedy.New(greedy.Options{}).Run(context.Background(), small(t, budgets, seed))
		require.NoError(t, err)
		p := small(t, budgets, seed)
		e, err := exact.New(exact.Options{}).Run(context.Background(), p)
		require.NoError(t, err)

		assert.Equal(t, optimizer.StatusOptimal, e.Meta.Status, "seed=%d", seed)
		assert.GreaterOrEqual(t, e.After.Objective, g.After.Objective-1e-6, "seed=%d", seed)
		assert.InDelta(t, g.Before.Objective, e.Before.Objective, 1e-9)
		assert.NoError(t, p.CheckAllocation(e.Allocation))
		for name, k := range budgets {
			assert.LessOrEqual(t, e.Allocation.TypeTotal(name), k)
		}
	}
}

func TestAgreesWhenGreedyIsOptimal(t *testing.T) {
	// 单一类型、预算为1时贪心即为最优
	for _, seed := range []int64{4, 5} {
		budgets := map[string]int{"grocery": 1}
		g, err := greedy.New(greedy.Options{}).Run(context.Background(), small(t, budgets, seed))
		require.NoError(t, err)
		e, err := exact.New(exact.Options{WarmStart: g.Allocation}).Run(context.Background(), small(t, budgets, seed))
		require.NoError(t, err)
		assert.Equal(t, optimizer.StatusOptimal, e.Meta.Status)
		assert.InDelta(t, g.After.Objective, e.After.Objective, 1e-6, "seed=%d", seed)
	}
}

func TestZeroBudget(t *testing.T) {
	p := small(t, map[string]int{}, 1)
	res, err := exact.New(exact.Options{}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Allocation.Total())
	assert.InDelta(t, res.Before.Objective, res.After.Objective, 1e-12)
	assert.Equal(t, optimizer.StatusOptimal, res.Meta.Status)
}

type fixedSolver struct {
	status milp.Status
}

func (s fixedSolver) Solve(ctx context.Context, m *milp.Model, opts milp.Options) (*milp.Solution, error) {
	return &milp.Solution{Status: s.status, Values: make([]float64, m.NumVars()), Bound: 100, Gap: 1}, nil
}

func TestSolverOutcomes(t *testing.T) {
	p, err := synth.Grocery()
	require.NoError(t, err)
	res, err := exact.New(exact.Options{Solver: fixedSolver{status: milp.StatusNoSolution}}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, optimizer.StatusNoSolution, res.Meta.Status)
	assert.Equal(t, 0, res.Allocation.Total())
	assert.Equal(t, res.Before.Objective, res.After.Objective)

	res, err = exact.New(exact.Options{Solver: fixedSolver{status: milp.StatusFeasible}}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, optimizer.StatusFeasible, res.Meta.Status)
	assert.Equal(t, 1.0, res.Meta.Gap)
	assert.Equal(t, 100.0, res.Meta.Bound)
}

func TestInvalidWarmStartIgnored(t *testing.T) {
	p, err := synth.Grocery()
	require.NoError(t, err)
	bad := optimizer.FromEntries([]optimizer.Entry{{Site: 11, Type: "grocery", Count: 2}})
	res, err := exact.New(exact.Options{WarmStart: bad}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 92.5, res.After.Objective, 1e-6)
}

func TestRunErrors(t *testing.T) {
	p, err := synth.Grocery()
	require.NoError(t, err)
	p.Budgets["grocery"] = 5
	_, err = exact.New(exact.Options{}).Run(context.Background(), p)
	assert.ErrorIs(t, err, optimizer.ErrInfeasible)
}

func benchmarkGrid(t *testing.T) *optimizer.Problem {
	p, err := synth.Grid(synth.GridConfig{
		Width: 12, Height: 12, Spacing: 150,
		Residentials: 36, Candidates: 18, Existing: 1, Capacity: 2,
		Budgets:     map[string]int{"grocery": 2, "school": 2, "restaurant": 2},
		AllowRepeat: true,
		Seed:        1,
	})
	require.NoError(t, err)
	return p
}

func TestTimeLimitOnLargeGrid(t *testing.T) {
	ctx := context.Background()
	g, err := greedy.New(greedy.Options{}).Run(ctx, benchmarkGrid(t))
	require.NoError(t, err)

	limit := time.Second
	p := benchmarkGrid(t)
	start := time.Now()
	res, err := exact.New(exact.Options{TimeLimit: limit, WarmStart: g.Allocation}).Run(ctx, p)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*limit)
	assert.Contains(t, []optimizer.Status{optimizer.StatusOptimal, optimizer.StatusFeasible}, res.Meta.Status)
	assert.GreaterOrEqual(t, res.After.Objective, g.After.Objective-1e-6)
	assert.NoError(t, p.CheckAllocation(res.Allocation))

	// 没有初始解时也按时返回
	start = time.Now()
	res, err = exact.New(exact.Options{TimeLimit: limit}).Run(ctx, benchmarkGrid(t))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*limit)
	assert.NotNil(t, res.Allocation)
}
