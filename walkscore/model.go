package walkscore

import (
	"math"

	"github.com/samber/lo"
)

// AccessibilityScore is the per-residential result pair.
type AccessibilityScore struct {
	Residential      int64   `yaml:"residential" bson:"residential"`
	WeightedDistance float64 `yaml:"weighted_distance" bson:"weighted_distance"`
	Score            float64 `yaml:"score" bson:"score"`
}

// Model turns nearest distances into contributions and scores. Nearest
// lists are ascending and may hold +Inf for unreachable instances.
type Model struct {
	pwl     *PWL
	catalog *Catalog
}

func NewModel(pwl *PWL, catalog *Catalog) *Model {
	return &Model{pwl: pwl, catalog: catalog}
}

func (m *Model) PWL() *PWL {
	return m.pwl
}

func (m *Model) Catalog() *Catalog {
	return m.catalog
}

// Contribution is the weighted score of one type for one residential. Ranks
// missing from nearest score 0; entries past the type's depth are ignored.
func (m *Model) Contribution(t AmenityType, nearest []float64) float64 {
	switch t.category {
	case CategoryPlain:
		if len(nearest) == 0 {
			return 0
		}
		return t.weight * m.pwl.Score(nearest[0])
	case CategoryDepth:
		sum := 0.0
		for p := 0; p < len(nearest) && p < len(t.rankWeights); p++ {
			sum += t.rankWeights[p] * m.pwl.Score(nearest[p])
		}
		return t.weight * sum
	default:
		log.Panicf("unknown category %v of type %s", t.category, t.name)
		return 0
	}
}

// Aggregate maps the summed contributions of a residential onto 0-100.
func (m *Model) Aggregate(total float64) float64 {
	return lo.Clamp(total/m.catalog.totalWeight, 0, 100)
}

// WeightedDistance is the reporting figure Σ w_a Σ_p w_a,p d_p, where a
// missing or unreachable rank counts as the last breakpoint.
func (m *Model) WeightedDistance(t AmenityType, nearest []float64) float64 {
	dInf := m.pwl.MaxBreakpoint()
	sum := 0.0
	for p := 0; p < t.Depth(); p++ {
		d := dInf
		if p < len(nearest) {
			d = math.Min(nearest[p], dInf)
		}
		sum += t.RankWeight(p) * d
	}
	return t.weight * sum
}

// Score evaluates one residential given its nearest lists in catalog order.
func (m *Model) Score(residential int64, nearest [][]float64) AccessibilityScore {
	if len(nearest) != len(m.catalog.types) {
		log.Panicf("residential %d: %d nearest lists for %d types", residential, len(nearest), len(m.catalog.types))
	}
	total, wd := 0.0, 0.0
	for a, t := range m.catalog.types {
		total += m.Contribution(t, nearest[a])
		wd += m.WeightedDistance(t, nearest[a])
	}
	return AccessibilityScore{
		Residential:      residential,
		WeightedDistance: wd,
		Score:            m.Aggregate(total),
	}
}
