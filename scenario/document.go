package scenario

import (
	"fmt"
	"time"

	"git.fiblab.net/sim/walkability/network"
	"git.fiblab.net/sim/walkability/optimizer"
	"git.fiblab.net/sim/walkability/optimizer/exact"
	"git.fiblab.net/sim/walkability/optimizer/greedy"
	"git.fiblab.net/sim/walkability/walkscore"
)

type NodeDoc struct {
	ID   int64   `yaml:"id" bson:"id"`
	Kind string  `yaml:"kind,omitempty" bson:"kind,omitempty"`
	X    float64 `yaml:"x" bson:"x"`
	Y    float64 `yaml:"y" bson:"y"`
}

type EdgeDoc struct {
	From   int64   `yaml:"from" bson:"from"`
	To     int64   `yaml:"to" bson:"to"`
	Length float64 `yaml:"length" bson:"length"`
}

type AmenityTypeDoc struct {
	Name        string    `yaml:"name" bson:"name"`
	Category    string    `yaml:"category" bson:"category"`
	Weight      float64   `yaml:"weight" bson:"weight"`
	RankWeights []float64 `yaml:"rank_weights,omitempty" bson:"rank_weights,omitempty"`
}

type ScoringDoc struct {
	Breakpoints []float64 `yaml:"breakpoints" bson:"breakpoints"`
	Scores      []float64 `yaml:"scores" bson:"scores"`
}

type SolverDoc struct {
	TimeLimitSeconds float64 `yaml:"time_limit_seconds" bson:"time_limit_seconds"`
	Gap              float64 `yaml:"gap" bson:"gap"`
	WarmStart        bool    `yaml:"warm_start" bson:"warm_start"`
}

type GreedyDoc struct {
	Order          string `yaml:"order" bson:"order"`
	StopOnZeroGain bool   `yaml:"stop_on_zero_gain" bson:"stop_on_zero_gain"`
}

// Config holds the run parameters of a scenario.
type Config struct {
	Scoring  ScoringDoc     `yaml:"scoring" bson:"scoring"`
	Budgets  map[string]int `yaml:"budgets" bson:"budgets"`
	Depth    map[string]int `yaml:"depth,omitempty" bson:"depth,omitempty"`
	// 未显式列出候选点时，候选类节点的默认容量
	DefaultCapacity int       `yaml:"default_capacity" bson:"default_capacity"`
	AllowRepeat     bool      `yaml:"allow_repeat" bson:"allow_repeat"`
	Prune           *bool     `yaml:"prune,omitempty" bson:"prune,omitempty"`
	CoverageRadius  float64   `yaml:"coverage_radius" bson:"coverage_radius"`
	Solver          SolverDoc `yaml:"solver" bson:"solver"`
	Greedy          GreedyDoc `yaml:"greedy" bson:"greedy"`
	// 成功标准，未设置时总是通过
	Criteria optimizer.Criteria `yaml:"criteria" bson:"criteria"`
}

// Document is a complete scenario as stored in a YAML file or a collection.
type Document struct {
	Name         string                      `yaml:"name" bson:"name"`
	Nodes        []NodeDoc                   `yaml:"nodes" bson:"nodes"`
	Edges        []EdgeDoc                   `yaml:"edges" bson:"edges"`
	Amenities    []AmenityTypeDoc            `yaml:"amenities" bson:"amenities"`
	Residentials []int64                     `yaml:"residentials,omitempty" bson:"residentials,omitempty"`
	Candidates   []optimizer.CandidateSite   `yaml:"candidates,omitempty" bson:"candidates,omitempty"`
	Existing     []optimizer.ExistingAmenity `yaml:"existing" bson:"existing"`
	Config       Config                      `yaml:"config" bson:"config"`
}

// Scenario is a built document ready to run.
type Scenario struct {
	Name    string
	Network *network.Network
	Cache   *network.DistanceCache
	Problem *optimizer.Problem
	Greedy  greedy.Options
	Exact   exact.Options

	// 用贪心结果作为精确求解的初始解
	WarmStart bool
	Criteria  optimizer.Criteria
}

func (d *Document) catalog() (*walkscore.Catalog, error) {
	types := make([]walkscore.AmenityType, 0, len(d.Amenities))
	for _, a := range d.Amenities {
		category, err := walkscore.ParseCategory(a.Category)
		if err != nil {
			return nil, err
		}
		var t walkscore.AmenityType
		switch category {
		case walkscore.CategoryPlain:
			t, err = walkscore.NewPlainType(a.Name, a.Weight)
		case walkscore.CategoryDepth:
			t, err = walkscore.NewDepthType(a.Name, a.Weight, a.RankWeights)
		}
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return walkscore.NewCatalog(types...)
}

// Build turns the document into a validated problem. Residentials and
// candidates default to the nodes of the matching kind.
func (d *Document) Build() (*Scenario, error) {
	nodes := make([]network.Node, len(d.Nodes))
	for i, n := range d.Nodes {
		kind, err := network.ParseNodeKind(n.Kind)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", n.ID, err)
		}
		nodes[i] = network.Node{ID: n.ID, Kind: kind, X: n.X, Y: n.Y}
	}
	edges := make([]network.Edge, len(d.Edges))
	for i, e := range d.Edges {
		edges[i] = network.Edge{From: e.From, To: e.To, Length: e.Length}
	}
	net, err := network.New(nodes, edges)
	if err != nil {
		return nil, err
	}
	pwl, err := walkscore.NewPWL(d.Config.Scoring.Breakpoints, d.Config.Scoring.Scores)
	if err != nil {
		return nil, err
	}
	catalog, err := d.catalog()
	if err != nil {
		return nil, err
	}
	if len(d.Config.Depth) > 0 {
		if catalog, err = catalog.WithDepth(d.Config.Depth); err != nil {
			return nil, err
		}
	}

	residentials := d.Residentials
	if len(residentials) == 0 {
		residentials = net.NodesOf(network.NodeKindResidential)
	}
	candidates := d.Candidates
	if len(candidates) == 0 {
		capacity := d.Config.DefaultCapacity
		if capacity == 0 {
			capacity = 1
		}
		for _, id := range net.NodesOf(network.NodeKindCandidate) {
			candidates = append(candidates, optimizer.CandidateSite{ID: id, Capacity: capacity})
		}
	}
	prune := true
	if d.Config.Prune != nil {
		prune = *d.Config.Prune
	}
	cache := network.NewDistanceCache(net)
	p := &optimizer.Problem{
		Distances:      cache,
		Model:          walkscore.NewModel(pwl, catalog),
		Residentials:   residentials,
		Candidates:     candidates,
		Existing:       d.Existing,
		Budgets:        d.Config.Budgets,
		AllowRepeat:    d.Config.AllowRepeat,
		Prune:          prune,
		CoverageRadius: d.Config.CoverageRadius,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	order, err := greedy.ParseOrder(d.Config.Greedy.Order)
	if err != nil {
		return nil, err
	}
	log.Infof("scenario %s: %d nodes, %d edges, %d residentials, %d candidates, %d existing amenities",
		d.Name, net.Len(), len(edges), len(residentials), len(candidates), len(d.Existing))
	return &Scenario{
		Name:    d.Name,
		Network: net,
		Cache:   cache,
		Problem: p,
		Greedy:  greedy.Options{Order: order, StopOnZeroGain: d.Config.Greedy.StopOnZeroGain},
		Exact: exact.Options{
			TimeLimit: time.Duration(d.Config.Solver.TimeLimitSeconds * float64(time.Second)),
			Gap:       d.Config.Solver.Gap,
		},
		WarmStart: d.Config.Solver.WarmStart,
		Criteria:  d.Config.Criteria,
	}, nil
}
