package exact

import (
	"context"
	"testing"

	"git.fiblab.net/sim/walkability/optimizer"
	"git.fiblab.net/sim/walkability/optimizer/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormulationShape(t *testing.T) {
	p, err := synth.Grocery()
	require.NoError(t, err)
	f, err := build(context.Background(), p)
	require.NoError(t, err)
	// 两个站点各一个y
	assert.Equal(t, 2, f.model.NumIntegers())
	assert.Len(t, f.keys, 2)

	alloc := optimizer.FromEntries([]optimizer.Entry{{Site: 12, Type: "grocery", Count: 1}})
	x := f.hint(p, alloc)
	assert.Equal(t, 1.0, x[f.y[yKey{site: 12, typ: 0}]])
	assert.Equal(t, 0.0, x[f.y[yKey{site: 11, typ: 0}]])
	assert.True(t, alloc.Equal(f.decode(p, x)))
	// 初始解完整可行，目标值与重新打分一致
	assert.True(t, f.model.Feasible(x, 1e-9))
	assert.InDelta(t, optimizer.Evaluate(p, alloc).Objective, f.model.Evaluate(x), 1e-9)
}

func TestHintOnGrid(t *testing.T) {
	p, err := synth.Grid(synth.GridConfig{
		Width: 8, Height: 8, Spacing: 150,
		Residentials: 12, Candidates: 6, Existing: 1, Capacity: 2,
		Budgets:     map[string]int{"grocery": 2, "school": 1, "restaurant": 3},
		AllowRepeat: true,
		Seed:        3,
	})
	require.NoError(t, err)
	f, err := build(context.Background(), p)
	require.NoError(t, err)
	sites := p.SortedCandidates()
	alloc := optimizer.FromEntries([]optimizer.Entry{
		{Site: sites[0].ID, Type: "grocery", Count: 1},
		{Site: sites[1].ID, Type: "grocery", Count: 1},
		{Site: sites[2].ID, Type: "restaurant", Count: 2},
		{Site: sites[3].ID, Type: "restaurant", Count: 1},
	})
	require.NoError(t, p.CheckAllocation(alloc))
	x := f.hint(p, alloc)
	assert.True(t, f.model.Feasible(x, 1e-9))
	assert.InDelta(t, optimizer.Evaluate(p, alloc).Objective, f.model.Evaluate(x), 1e-9)
}

func TestPlainTypesHaveOneRank(t *testing.T) {
	p, err := synth.Grid(synth.GridConfig{
		Width: 8, Height: 8, Spacing: 150,
		Residentials: 12, Candidates: 6, Existing: 1, Capacity: 2,
		Budgets: map[string]int{"grocery": 1, "restaurant": 1},
		Seed:    5,
	})
	require.NoError(t, err)
	f, err := build(context.Background(), p)
	require.NoError(t, err)
	catalog := p.Model.Catalog()
	for i, r := range p.Residentials {
		nearest := make(map[int]float64)
		for a, typ := range catalog.Types() {
			if nb := p.Distances.KNearest(r, p.ExistingOf()[a], typ.Depth()); len(nb) == typ.Depth() {
				nearest[a] = nb[len(nb)-1].Distance
			}
		}
		for _, g := range f.groups[i] {
			typ := catalog.At(g.typ)
			assert.LessOrEqual(t, len(g.z), typ.Depth())
			for _, opt := range g.options {
				if opt.y < 0 {
					continue
				}
				if cutoff, ok := nearest[g.typ]; ok {
					assert.Less(t, p.Distances.Distance(r, opt.site), cutoff)
				}
			}
		}
	}
}
