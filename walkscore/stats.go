package walkscore

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistics summarizes a score set. Shares are percentages.
type Statistics struct {
	Count   int     `yaml:"count" bson:"count"`
	Mean    float64 `yaml:"mean" bson:"mean"`
	Median  float64 `yaml:"median" bson:"median"`
	Std     float64 `yaml:"std" bson:"std"`
	Min     float64 `yaml:"min" bson:"min"`
	Max     float64 `yaml:"max" bson:"max"`
	Q25     float64 `yaml:"q25" bson:"q25"`
	Q75     float64 `yaml:"q75" bson:"q75"`
	Above50 float64 `yaml:"above_50" bson:"above_50"`
	Above75 float64 `yaml:"above_75" bson:"above_75"`
}

func Summarize(scores []AccessibilityScore) Statistics {
	if len(scores) == 0 {
		return Statistics{}
	}
	x := make([]float64, len(scores))
	above50, above75 := 0, 0
	for i, s := range scores {
		x[i] = s.Score
		if s.Score >= 50 {
			above50++
		}
		if s.Score >= 75 {
			above75++
		}
	}
	sort.Float64s(x)
	mean, variance := stat.PopMeanVariance(x, nil)
	n := float64(len(x))
	return Statistics{
		Count:   len(x),
		Mean:    mean,
		Median:  stat.Quantile(0.5, stat.Empirical, x, nil),
		Std:     math.Sqrt(variance),
		Min:     floats.Min(x),
		Max:     floats.Max(x),
		Q25:     stat.Quantile(0.25, stat.Empirical, x, nil),
		Q75:     stat.Quantile(0.75, stat.Empirical, x, nil),
		Above50: float64(above50) / n * 100,
		Above75: float64(above75) / n * 100,
	}
}
