package optimizer_test

import (
	"context"
	"errors"
	"testing"

	"git.fiblab.net/sim/walkability/network"
	"git.fiblab.net/sim/walkability/optimizer"
	"git.fiblab.net/sim/walkability/optimizer/synth"
	"git.fiblab.net/sim/walkability/walkscore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grocery(t *testing.T) *optimizer.Problem {
	p, err := synth.Grocery()
	require.NoError(t, err)
	return p
}

func grid(t *testing.T, prune bool) *optimizer.Problem {
	p, err := synth.Grid(synth.GridConfig{
		Width: 8, Height: 8, Spacing: 150,
		Residentials: 12, Candidates: 6, Existing: 1, Capacity: 2,
		Budgets:     map[string]int{"grocery": 2, "school": 1, "restaurant": 2},
		AllowRepeat: true,
		Seed:        7,
	})
	require.NoError(t, err)
	p.Prune = prune
	return p
}

func TestValidate(t *testing.T) {
	require.NoError(t, grocery(t).Validate())

	cases := []struct {
		name   string
		modify func(p *optimizer.Problem)
	}{
		{"zero capacity", func(p *optimizer.Problem) { p.Candidates[0].Capacity = 0 }},
		{"budget over capacity", func(p *optimizer.Problem) { p.Budgets["grocery"] = 3 }},
		{"negative budget", func(p *optimizer.Problem) { p.Budgets["grocery"] = -1 }},
		{"unknown budget type", func(p *optimizer.Problem) { p.Budgets["park"] = 1 }},
		{"duplicate site", func(p *optimizer.Problem) { p.Candidates[1].ID = p.Candidates[0].ID }},
		{"site off network", func(p *optimizer.Problem) { p.Candidates[1].ID = 99 }},
		{"duplicate residential", func(p *optimizer.Problem) { p.Residentials = append(p.Residentials, 1) }},
		{"unknown existing type", func(p *optimizer.Problem) { p.Existing[0].Type = "park" }},
		{"negative coverage radius", func(p *optimizer.Problem) { p.CoverageRadius = -1 }},
		{"repeat over sites", func(p *optimizer.Problem) {
			p.Candidates[0].Capacity = 5
			p.Budgets["grocery"] = 3
		}},
	}
	for _, c := range cases {
		p := grocery(t)
		c.modify(p)
		assert.ErrorIs(t, p.Validate(), optimizer.ErrInfeasible, c.name)
	}

	// 允许重复时同一站点可放多个
	p := grocery(t)
	p.Candidates[0].Capacity = 5
	p.Budgets["grocery"] = 3
	p.AllowRepeat = true
	assert.NoError(t, p.Validate())
}

func TestAllocation(t *testing.T) {
	a := optimizer.NewAllocation()
	a.Add(12, "grocery", 1)
	a.Add(11, "school", 2)
	a.Add(11, "grocery", 1)
	a.Add(11, "school", 0)
	assert.Equal(t, 4, a.Total())
	assert.Equal(t, 3, a.SiteTotal(11))
	assert.Equal(t, 2, a.TypeTotal("grocery"))
	assert.Equal(t, 2, a.Count(11, "school"))
	assert.Equal(t, []optimizer.Entry{
		{Site: 11, Type: "grocery", Count: 1},
		{Site: 11, Type: "school", Count: 2},
		{Site: 12, Type: "grocery", Count: 1},
	}, a.Entries())
	assert.Equal(t, []int64{11, 11}, a.Sites("school"))

	b := a.Clone()
	assert.True(t, a.Equal(b))
	b.Add(12, "school", 1)
	assert.False(t, a.Equal(b))
	assert.Equal(t, 4, a.Total())
	assert.Panics(t, func() { a.Add(1, "grocery", -1) })
}

func TestCheckAllocation(t *testing.T) {
	p := grocery(t)
	assert.NoError(t, p.CheckAllocation(optimizer.FromEntries([]optimizer.Entry{{Site: 11, Type: "grocery", Count: 1}})))

	over := optimizer.FromEntries([]optimizer.Entry{{Site: 11, Type: "grocery", Count: 1}, {Site: 12, Type: "grocery", Count: 1}})
	assert.ErrorIs(t, p.CheckAllocation(over), optimizer.ErrInvariant)

	p.Budgets["grocery"] = 2
	full := optimizer.FromEntries([]optimizer.Entry{{Site: 11, Type: "grocery", Count: 2}})
	assert.ErrorIs(t, p.CheckAllocation(full), optimizer.ErrInvariant)
	p.AllowRepeat = true
	assert.ErrorIs(t, p.CheckAllocation(full), optimizer.ErrInvariant, "capacity 1")
	p.Candidates[0].Capacity = 2
	assert.NoError(t, p.CheckAllocation(full))

	stray := optimizer.FromEntries([]optimizer.Entry{{Site: 20, Type: "grocery", Count: 1}})
	assert.ErrorIs(t, p.CheckAllocation(stray), optimizer.ErrInvariant)
}

func TestEvaluateGrocery(t *testing.T) {
	p := grocery(t)
	before := optimizer.Evaluate(p, nil)
	assert.Equal(t, 0.0, before.Objective)
	assert.Equal(t, 0.0, before.Coverage)
	assert.InDelta(t, 2400.0, before.WeightedDistance, 1e-9)
	assert.Len(t, before.Scores, 5)

	after := optimizer.Evaluate(p, optimizer.FromEntries([]optimizer.Entry{{Site: 11, Type: "grocery", Count: 1}}))
	assert.InDelta(t, 92.5, after.Objective, 1e-9)
	assert.Equal(t, 100.0, after.Coverage)
	assert.InDelta(t, 300.0, after.WeightedDistance, 1e-9)
	assert.Equal(t, 5, after.Stats.Count)

	other := optimizer.Evaluate(p, optimizer.FromEntries([]optimizer.Entry{{Site: 12, Type: "grocery", Count: 1}}))
	assert.InDelta(t, 79.5, other.Objective, 1e-9)
}

func TestStateGainMatchesEvaluate(t *testing.T) {
	p := grid(t, true)
	require.NoError(t, p.Validate())
	s, err := optimizer.NewState(context.Background(), p, 2)
	require.NoError(t, err)
	assert.InDelta(t, optimizer.Evaluate(p, nil).Objective, s.Objective(), 1e-9)

	for step := 0; step < 3; step++ {
		for a, typ := range s.Types() {
			for _, site := range s.Eligible(a) {
				base := optimizer.Evaluate(p, s.Allocation()).Objective
				next := s.Allocation().Clone()
				next.Add(site, typ.Name(), 1)
				want := optimizer.Evaluate(p, next).Objective - base
				assert.InDelta(t, want, s.Gain(a, site), 1e-9, "type=%s site=%d", typ.Name(), site)
			}
		}
		// 提交一个单位后继续比较
		a := step % len(s.Types())
		sites := s.Eligible(a)
		require.NotEmpty(t, sites)
		gain := s.Gain(a, sites[0])
		assert.InDelta(t, gain, s.Apply(a, sites[0]), 1e-12)
		assert.InDelta(t, optimizer.Evaluate(p, s.Allocation()).Objective, s.Objective(), 1e-9)
	}
	assert.Equal(t, 3, s.Allocation().Total())
	assert.NoError(t, p.CheckAllocation(s.Allocation()))

	scores := s.Scores()
	full := optimizer.Evaluate(p, s.Allocation())
	for i := range scores {
		assert.InDelta(t, full.Scores[i].Score, scores[i].Score, 1e-9)
		assert.InDelta(t, full.Scores[i].WeightedDistance, scores[i].WeightedDistance, 1e-6)
	}
}

func TestStatePruneEquivalence(t *testing.T) {
	pruned, err := optimizer.NewState(context.Background(), grid(t, true), 1)
	require.NoError(t, err)
	full, err := optimizer.NewState(context.Background(), grid(t, false), 1)
	require.NoError(t, err)
	for a := range pruned.Types() {
		for _, site := range pruned.Eligible(a) {
			assert.InDelta(t, full.Gain(a, site), pruned.Gain(a, site), 1e-12)
		}
	}
}

func TestStateEligibility(t *testing.T) {
	p := grocery(t)
	p.Candidates[0].Capacity = 2
	p.Budgets["grocery"] = 2
	s, err := optimizer.NewState(context.Background(), p, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, s.Eligible(0))
	s.Apply(0, 11)
	// 不允许重复
	assert.Equal(t, []int64{12}, s.Eligible(0))
	assert.Equal(t, 1, s.Remaining(11))
	assert.Panics(t, func() { s.Apply(0, 11) })
	s.Apply(0, 12)
	assert.True(t, s.Exhausted(0))
	assert.Nil(t, s.Eligible(0))
}

func TestNewStateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := optimizer.NewState(ctx, grid(t, true), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefectError(t *testing.T) {
	var err error = &optimizer.DefectError{Step: 3, Type: "grocery", Site: 11, Gain: -0.5, Err: optimizer.ErrNonMonotonic}
	assert.ErrorIs(t, err, optimizer.ErrNonMonotonic)
	var defect *optimizer.DefectError
	require.True(t, errors.As(err, &defect))
	assert.Equal(t, int64(11), defect.Site)
	assert.Contains(t, err.Error(), "step 3")
}

func TestRunMetadata(t *testing.T) {
	a := optimizer.NewRunMetadata("greedy")
	b := optimizer.NewRunMetadata("greedy")
	assert.Equal(t, "greedy", a.Algorithm)
	assert.Len(t, a.RunID, 36)
	assert.NotEqual(t, a.RunID, b.RunID)
}

// 住宅1到三家餐馆分别为0/400/800m，候选点5距200m；住宅9不连通
func deepRestaurants(t *testing.T) *optimizer.Problem {
	nodes := []network.Node{
		{ID: 1, Kind: network.NodeKindResidential},
		{ID: 2, Kind: network.NodeKindAmenity},
		{ID: 3, Kind: network.NodeKindAmenity},
		{ID: 4, Kind: network.NodeKindAmenity},
		{ID: 5, Kind: network.NodeKindCandidate},
		{ID: 9, Kind: network.NodeKindResidential},
	}
	edges := []network.Edge{
		{From: 1, To: 2, Length: 0},
		{From: 1, To: 3, Length: 400},
		{From: 1, To: 4, Length: 800},
		{From: 1, To: 5, Length: 200},
	}
	net, err := network.New(nodes, edges)
	require.NoError(t, err)
	restaurant, err := walkscore.NewDepthType("restaurant", 1,
		[]float64{0.3, 0.2, 0.15, 0.1, 0.08, 0.06, 0.05, 0.03, 0.02, 0.01})
	require.NoError(t, err)
	require.Equal(t, 10, restaurant.Depth())
	catalog, err := walkscore.NewCatalog(restaurant)
	require.NoError(t, err)
	return &optimizer.Problem{
		Distances:    network.NewDistanceCache(net),
		Model:        walkscore.NewModel(synth.DefaultPWL(), catalog),
		Residentials: []int64{1, 9},
		Candidates:   []optimizer.CandidateSite{{ID: 5, Capacity: 1}},
		Existing: []optimizer.ExistingAmenity{
			{Node: 2, Type: "restaurant"},
			{Node: 3, Type: "restaurant"},
			{Node: 4, Type: "restaurant"},
		},
		Budgets: map[string]int{"restaurant": 1},
		Prune:   true,
	}
}

func TestDepthBeyondAvailableAmenities(t *testing.T) {
	p := deepRestaurants(t)
	require.NoError(t, p.Validate())
	before := optimizer.Evaluate(p, nil)
	// 0.3*100 + 0.2*90 + 0.15*70，其余名次缺失记0
	assert.InDelta(t, 58.5, before.Scores[0].Score, 1e-9)
	// 不连通的住宅得分为0
	assert.Equal(t, int64(9), before.Scores[1].Residential)
	assert.Equal(t, 0.0, before.Scores[1].Score)
	assert.InDelta(t, 29.25, before.Objective, 1e-9)

	s, err := optimizer.NewState(context.Background(), p, 1)
	require.NoError(t, err)
	assert.InDelta(t, before.Objective, s.Objective(), 1e-9)
	// 新餐馆200m：100,95,90,70
	after := optimizer.Evaluate(p, optimizer.FromEntries([]optimizer.Entry{{Site: 5, Type: "restaurant", Count: 1}}))
	assert.InDelta(t, 69.5, after.Scores[0].Score, 1e-9)
	assert.Equal(t, 0.0, after.Scores[1].Score)
	assert.InDelta(t, after.Objective-before.Objective, s.Gain(0, 5), 1e-9)
	assert.InDelta(t, 5.5, s.Apply(0, 5), 1e-9)
	assert.InDelta(t, after.Objective, s.Objective(), 1e-9)
}

func TestCriteria(t *testing.T) {
	res := &optimizer.Result{
		Before: optimizer.Evaluation{Objective: 40},
		After:  optimizer.Evaluation{Objective: 52, Coverage: 80},
	}
	assert.Equal(t, optimizer.Success{Coverage: true, Increase: true, Passed: true},
		optimizer.Criteria{Coverage: 80, MinIncrease: 10}.Check(res))
	assert.Equal(t, optimizer.Success{Coverage: false, Increase: true, Passed: false},
		optimizer.Criteria{Coverage: 90, MinIncrease: 10}.Check(res))
	assert.Equal(t, optimizer.Success{Coverage: true, Increase: false, Passed: false},
		optimizer.Criteria{Coverage: 50, MinIncrease: 15}.Check(res))
	assert.True(t, optimizer.Criteria{}.Check(res).Passed)
}
