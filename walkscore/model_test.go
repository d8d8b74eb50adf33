package walkscore_test

import (
	"math"
	"testing"

	"git.fiblab.net/sim/walkability/walkscore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var restaurantRanks = []float64{0.3, 0.2, 0.15, 0.1, 0.07, 0.06, 0.05, 0.03, 0.02, 0.02}

func newCatalog(t *testing.T) *walkscore.Catalog {
	grocery, err := walkscore.NewPlainType("grocery", 1.0)
	require.NoError(t, err)
	school, err := walkscore.NewPlainType("school", 0.8)
	require.NoError(t, err)
	restaurant, err := walkscore.NewDepthType("restaurant", 0.6, restaurantRanks)
	require.NoError(t, err)
	c, err := walkscore.NewCatalog(grocery, school, restaurant)
	require.NoError(t, err)
	return c
}

func TestAmenityTypes(t *testing.T) {
	c := newCatalog(t)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"grocery", "school", "restaurant"}, c.Names())
	assert.InDelta(t, 2.4, c.TotalWeight(), 1e-12)

	r, ok := c.Type("restaurant")
	require.True(t, ok)
	assert.Equal(t, walkscore.CategoryDepth, r.Category())
	assert.Equal(t, 10, r.Depth())
	assert.Equal(t, 0.0, r.RankWeight(10))
	g, _ := c.Type("grocery")
	assert.Equal(t, 1, g.Depth())
	assert.Equal(t, 1.0, g.RankWeight(0))
	assert.Equal(t, "plain", g.Category().String())

	i, ok := c.Index("school")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = c.Type("park")
	assert.False(t, ok)
}

func TestAmenityTypeValidation(t *testing.T) {
	_, err := walkscore.NewPlainType("", 1)
	assert.ErrorIs(t, err, walkscore.ErrInvalidType)
	_, err = walkscore.NewPlainType("grocery", -1)
	assert.ErrorIs(t, err, walkscore.ErrInvalidType)
	_, err = walkscore.NewDepthType("restaurant", 1, nil)
	assert.ErrorIs(t, err, walkscore.ErrInvalidType)
	_, err = walkscore.NewDepthType("restaurant", 1, []float64{0.2, 0.5})
	assert.ErrorIs(t, err, walkscore.ErrInvalidType)

	g, _ := walkscore.NewPlainType("grocery", 1)
	_, err = walkscore.NewCatalog(g, g)
	assert.ErrorIs(t, err, walkscore.ErrDuplicateType)
	z, _ := walkscore.NewPlainType("bench", 0)
	_, err = walkscore.NewCatalog(z)
	assert.ErrorIs(t, err, walkscore.ErrInvalidType)

	cat, err := walkscore.ParseCategory("depth")
	assert.NoError(t, err)
	assert.Equal(t, walkscore.CategoryDepth, cat)
	_, err = walkscore.ParseCategory("fancy")
	assert.Error(t, err)
}

func TestWithDepth(t *testing.T) {
	c := newCatalog(t)
	d, err := c.WithDepth(map[string]int{"restaurant": 3, "grocery": 1})
	require.NoError(t, err)
	r, _ := d.Type("restaurant")
	assert.Equal(t, 3, r.Depth())
	assert.Equal(t, restaurantRanks[:3], r.RankWeights())
	// 原目录不受影响
	r, _ = c.Type("restaurant")
	assert.Equal(t, 10, r.Depth())

	_, err = c.WithDepth(map[string]int{"restaurant": 11})
	assert.ErrorIs(t, err, walkscore.ErrInvalidType)
	_, err = c.WithDepth(map[string]int{"grocery": 2})
	assert.ErrorIs(t, err, walkscore.ErrInvalidType)
	_, err = c.WithDepth(map[string]int{"park": 1})
	assert.ErrorIs(t, err, walkscore.ErrUnknownType)
}

func TestContributionPlain(t *testing.T) {
	m := walkscore.NewModel(newPWL(t), newCatalog(t))
	g, _ := m.Catalog().Type("grocery")
	s, _ := m.Catalog().Type("school")
	assert.Equal(t, 0.0, m.Contribution(g, nil))
	assert.Equal(t, 90.0, m.Contribution(g, []float64{400, 800}))
	assert.InDelta(t, 0.8*70, m.Contribution(s, []float64{800}), 1e-9)
	assert.Equal(t, 0.0, m.Contribution(g, []float64{math.Inf(0)}))
}

func TestContributionDepthMissingRanks(t *testing.T) {
	m := walkscore.NewModel(newPWL(t), newCatalog(t))
	r, _ := m.Catalog().Type("restaurant")
	require.Equal(t, 10, r.Depth())

	// 只有3个可达的餐馆，其余名次记0分
	want := 0.6 * (0.3*100 + 0.2*90 + 0.15*70)
	assert.InDelta(t, want, m.Contribution(r, []float64{0, 400, 800}), 1e-9)

	inf := math.Inf(0)
	padded := []float64{0, 400, 800, inf, inf, inf, inf, inf, inf, inf}
	assert.InDelta(t, want, m.Contribution(r, padded), 1e-9)
	assert.Equal(t, 0.0, m.Contribution(r, nil))
}

func TestScoreAggregate(t *testing.T) {
	m := walkscore.NewModel(newPWL(t), newCatalog(t))
	all := make([]float64, 10)
	perfect := m.Score(1, [][]float64{{0}, {0}, all})
	ranks := 0.0
	for _, w := range restaurantRanks {
		ranks += w
	}
	assert.InDelta(t, (100+80+0.6*ranks*100)/2.4, perfect.Score, 1e-9)

	// 完全不连通的住宅得分为0
	lost := m.Score(2, [][]float64{nil, nil, nil})
	assert.Equal(t, 0.0, lost.Score)
	assert.InDelta(t, 2400*(1+0.8+0.6*ranks), lost.WeightedDistance, 1e-6)
	assert.Equal(t, int64(2), lost.Residential)

	assert.Equal(t, 100.0, m.Aggregate(1e9))
	assert.Equal(t, 0.0, m.Aggregate(-5))
	assert.Panics(t, func() { m.Score(3, [][]float64{nil}) })
}

func TestWeightedDistance(t *testing.T) {
	m := walkscore.NewModel(newPWL(t), newCatalog(t))
	g, _ := m.Catalog().Type("grocery")
	assert.Equal(t, 300.0, m.WeightedDistance(g, []float64{300}))
	assert.Equal(t, 2400.0, m.WeightedDistance(g, []float64{5000}))
	assert.Equal(t, 2400.0, m.WeightedDistance(g, nil))
}

func TestSummarize(t *testing.T) {
	scores := []walkscore.AccessibilityScore{
		{Residential: 1, Score: 80},
		{Residential: 2, Score: 10},
		{Residential: 3, Score: 100},
		{Residential: 4, Score: 50},
		{Residential: 5, Score: 60},
	}
	s := walkscore.Summarize(scores)
	assert.Equal(t, 5, s.Count)
	assert.InDelta(t, 60.0, s.Mean, 1e-9)
	assert.Equal(t, 60.0, s.Median)
	assert.Equal(t, 50.0, s.Q25)
	assert.Equal(t, 80.0, s.Q75)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 100.0, s.Max)
	assert.InDelta(t, math.Sqrt(920), s.Std, 1e-9)
	assert.InDelta(t, 80.0, s.Above50, 1e-9)
	assert.InDelta(t, 40.0, s.Above75, 1e-9)

	assert.Equal(t, walkscore.Statistics{}, walkscore.Summarize(nil))
}
