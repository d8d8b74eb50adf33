package optimizer

import (
	"git.fiblab.net/sim/walkability/network"
	"git.fiblab.net/sim/walkability/walkscore"
	"github.com/samber/lo"
)

// Evaluation is a full scoring of every residential for one amenity set.
type Evaluation struct {
	Scores    []walkscore.AccessibilityScore `yaml:"scores" bson:"scores"`
	Objective float64                        `yaml:"objective" bson:"objective"`
	// 平均加权距离
	WeightedDistance float64 `yaml:"weighted_distance" bson:"weighted_distance"`
	// 所有类型最近设施都在覆盖半径内的住宅占比(%)
	Coverage float64              `yaml:"coverage" bson:"coverage"`
	Stats    walkscore.Statistics `yaml:"stats" bson:"stats"`
}

func distancesOf(nb []network.Neighbor) []float64 {
	return lo.Map(nb, func(n network.Neighbor, _ int) float64 { return n.Distance })
}

// Evaluate scores existing amenities plus alloc (nil for the baseline) from
// scratch, without any incremental state.
func Evaluate(p *Problem, alloc *Allocation) Evaluation {
	catalog := p.Model.Catalog()
	sets := p.ExistingOf()
	if alloc != nil {
		for a, name := range catalog.Names() {
			sets[a] = append(sets[a], alloc.Sites(name)...)
		}
	}
	radius := p.coverageRadius()
	ev := Evaluation{Scores: make([]walkscore.AccessibilityScore, len(p.Residentials))}
	covered := 0
	for i, r := range p.Residentials {
		nearest := make([][]float64, catalog.Len())
		ok := true
		for a, t := range catalog.Types() {
			nearest[a] = distancesOf(p.Distances.KNearest(r, sets[a], t.Depth()))
			if len(nearest[a]) == 0 || nearest[a][0] > radius {
				ok = false
			}
		}
		ev.Scores[i] = p.Model.Score(r, nearest)
		ev.Objective += ev.Scores[i].Score
		ev.WeightedDistance += ev.Scores[i].WeightedDistance
		if ok {
			covered++
		}
	}
	if n := float64(len(p.Residentials)); n > 0 {
		ev.Objective /= n
		ev.WeightedDistance /= n
		ev.Coverage = float64(covered) / n * 100
	}
	ev.Stats = walkscore.Summarize(ev.Scores)
	return ev
}

// Criteria are the success targets a run is checked against.
type Criteria struct {
	// 15分钟覆盖率目标(%)
	Coverage float64 `yaml:"coverage" bson:"coverage"`
	// 平均WalkScore的最小提升
	MinIncrease float64 `yaml:"min_increase" bson:"min_increase"`
}

type Success struct {
	Coverage bool `yaml:"coverage" bson:"coverage"`
	Increase bool `yaml:"increase" bson:"increase"`
	Passed   bool `yaml:"passed" bson:"passed"`
}

// Check compares the coverage after the run and the objective increase
// with the targets.
func (c Criteria) Check(res *Result) Success {
	s := Success{
		Coverage: res.After.Coverage >= c.Coverage,
		Increase: res.Improvement() >= c.MinIncrease,
	}
	s.Passed = s.Coverage && s.Increase
	return s
}
