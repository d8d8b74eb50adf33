// Package synth builds synthetic allocation problems for tests and the
// benchmark mode.
package synth

import (
	"fmt"
	"math/rand"

	"git.fiblab.net/sim/walkability/network"
	"git.fiblab.net/sim/walkability/optimizer"
	"git.fiblab.net/sim/walkability/walkscore"
)

var (
	DefaultBreakpoints = []float64{0, 400, 800, 1600, 2400}
	DefaultScores      = []float64{100, 90, 70, 40, 0}
)

func DefaultPWL() *walkscore.PWL {
	p, err := walkscore.NewPWL(DefaultBreakpoints, DefaultScores)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultCatalog is grocery and school (plain) plus restaurant (depth 3).
func DefaultCatalog() *walkscore.Catalog {
	grocery, _ := walkscore.NewPlainType("grocery", 1.0)
	school, _ := walkscore.NewPlainType("school", 0.8)
	restaurant, _ := walkscore.NewDepthType("restaurant", 0.6, []float64{0.5, 0.3, 0.2})
	c, err := walkscore.NewCatalog(grocery, school, restaurant)
	if err != nil {
		panic(err)
	}
	return c
}

// Grocery is the five-residential, two-candidate star: site 11 is 300 m from
// every residential, site 12 is 100 m from residential 1 only, and the one
// existing grocery (20) lies 3 km behind site 12.
func Grocery() (*optimizer.Problem, error) {
	nodes := []network.Node{
		{ID: 11, Kind: network.NodeKindCandidate},
		{ID: 12, Kind: network.NodeKindCandidate},
		{ID: 20, Kind: network.NodeKindAmenity},
	}
	edges := []network.Edge{
		{From: 1, To: 12, Length: 100},
		{From: 12, To: 20, Length: 3000},
	}
	residentials := []int64{1, 2, 3, 4, 5}
	for _, r := range residentials {
		nodes = append(nodes, network.Node{ID: r, Kind: network.NodeKindResidential})
		edges = append(edges, network.Edge{From: r, To: 11, Length: 300})
	}
	net, err := network.New(nodes, edges)
	if err != nil {
		return nil, err
	}
	grocery, err := walkscore.NewPlainType("grocery", 1.0)
	if err != nil {
		return nil, err
	}
	catalog, err := walkscore.NewCatalog(grocery)
	if err != nil {
		return nil, err
	}
	return &optimizer.Problem{
		Distances:    network.NewDistanceCache(net),
		Model:        walkscore.NewModel(DefaultPWL(), catalog),
		Residentials: residentials,
		Candidates:   []optimizer.CandidateSite{{ID: 11, Capacity: 1}, {ID: 12, Capacity: 1}},
		Existing:     []optimizer.ExistingAmenity{{Node: 20, Type: "grocery"}},
		Budgets:      map[string]int{"grocery": 1},
		Prune:        true,
	}, nil
}

type GridConfig struct {
	Width, Height int
	// 相邻格点间距，边长在[Spacing, 1.5*Spacing)内随机
	Spacing      float64
	Residentials int
	Candidates   int
	// 每种类型的现有设施数
	Existing    int
	Capacity    int
	Budgets     map[string]int
	AllowRepeat bool
	Seed        int64
}

// Grid builds a random instance on a jittered grid street network with the
// default curve and catalog.
func Grid(cfg GridConfig) (*optimizer.Problem, error) {
	catalog := DefaultCatalog()
	need := cfg.Residentials + cfg.Candidates + cfg.Existing*catalog.Len()
	if cfg.Width*cfg.Height < need {
		return nil, fmt.Errorf("grid %dx%d too small for %d marked nodes", cfg.Width, cfg.Height, need)
	}
	e := rand.New(rand.NewSource(cfg.Seed))
	id := func(x, y int) int64 { return int64(y*cfg.Width + x + 1) }
	nodes := make([]network.Node, 0, cfg.Width*cfg.Height)
	edges := make([]network.Edge, 0, 2*cfg.Width*cfg.Height)
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			nodes = append(nodes, network.Node{ID: id(x, y), X: float64(x) * cfg.Spacing, Y: float64(y) * cfg.Spacing})
			if x > 0 {
				edges = append(edges, network.Edge{From: id(x-1, y), To: id(x, y), Length: cfg.Spacing * (1 + e.Float64()/2)})
			}
			if y > 0 {
				edges = append(edges, network.Edge{From: id(x, y-1), To: id(x, y), Length: cfg.Spacing * (1 + e.Float64()/2)})
			}
		}
	}
	perm := e.Perm(len(nodes))
	p := &optimizer.Problem{
		Model:       walkscore.NewModel(DefaultPWL(), catalog),
		Budgets:     cfg.Budgets,
		AllowRepeat: cfg.AllowRepeat,
		Prune:       true,
	}
	k := 0
	for ; k < cfg.Residentials; k++ {
		nodes[perm[k]].Kind = network.NodeKindResidential
		p.Residentials = append(p.Residentials, nodes[perm[k]].ID)
	}
	for ; k < cfg.Residentials+cfg.Candidates; k++ {
		nodes[perm[k]].Kind = network.NodeKindCandidate
		p.Candidates = append(p.Candidates, optimizer.CandidateSite{ID: nodes[perm[k]].ID, Capacity: cfg.Capacity})
	}
	for _, name := range catalog.Names() {
		for n := 0; n < cfg.Existing; n, k = n+1, k+1 {
			nodes[perm[k]].Kind = network.NodeKindAmenity
			p.Existing = append(p.Existing, optimizer.ExistingAmenity{Node: nodes[perm[k]].ID, Type: name})
		}
	}
	net, err := network.New(nodes, edges)
	if err != nil {
		return nil, err
	}
	p.Distances = network.NewDistanceCache(net)
	return p, nil
}
