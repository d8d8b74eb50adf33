package scenario

import (
	"git.fiblab.net/sim/walkability/optimizer"
)

// Report is the persisted outcome of one run.
type Report struct {
	Scenario   string                `yaml:"scenario" bson:"scenario"`
	Meta       optimizer.RunMetadata `yaml:"meta" bson:"meta"`
	Scoring    ScoringDoc            `yaml:"scoring" bson:"scoring"`
	Allocation []optimizer.Entry     `yaml:"allocation" bson:"allocation"`
	Before     optimizer.Evaluation  `yaml:"before" bson:"before"`
	After      optimizer.Evaluation  `yaml:"after" bson:"after"`
	Success    optimizer.Success     `yaml:"success" bson:"success"`
	Routes     []Route               `yaml:"routes,omitempty" bson:"routes,omitempty"`
	Steps      []optimizer.Step      `yaml:"steps,omitempty" bson:"steps,omitempty"`
}

// Route is the walk from a residential to its nearest newly allocated
// amenity of one type.
type Route struct {
	Residential int64   `yaml:"residential" bson:"residential"`
	Type        string  `yaml:"type" bson:"type"`
	Site        int64   `yaml:"site" bson:"site"`
	Distance    float64 `yaml:"distance" bson:"distance"`
	Nodes       []int64 `yaml:"nodes" bson:"nodes"`
}

func NewReport(s *Scenario, res *optimizer.Result) *Report {
	pwl := s.Problem.Model.PWL()
	return &Report{
		Scenario:   s.Name,
		Meta:       res.Meta,
		Scoring:    ScoringDoc{Breakpoints: pwl.Breakpoints(), Scores: pwl.Scores()},
		Allocation: res.Allocation.Entries(),
		Before:     res.Before,
		After:      res.After,
		Success:    s.Criteria.Check(res),
		Routes:     routes(s, res.Allocation),
		Steps:      res.Steps,
	}
}

// 无法到达任何新设施的住宅不输出路径
func routes(s *Scenario, alloc *optimizer.Allocation) []Route {
	var out []Route
	for _, typ := range s.Problem.Model.Catalog().Names() {
		sites := alloc.Sites(typ)
		if len(sites) == 0 {
			continue
		}
		for _, r := range s.Problem.Residentials {
			nearest := s.Cache.KNearest(r, sites, 1)
			if len(nearest) == 0 {
				continue
			}
			nodes, d := s.Network.ShortestPath(r, nearest[0].ID)
			if nodes == nil {
				continue
			}
			out = append(out, Route{
				Residential: r,
				Type:        typ,
				Site:        nearest[0].ID,
				Distance:    d,
				Nodes:       nodes,
			})
		}
	}
	return out
}
