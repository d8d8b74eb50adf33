package optimizer

import (
	"context"
	"fmt"
	"sort"

	"git.fiblab.net/sim/walkability/network"
	"git.fiblab.net/sim/walkability/walkscore"
	"github.com/samber/lo"
)

const DefaultCoverageRadius = 1200.0

// Distances is what the optimizers need from the distance provider.
type Distances interface {
	Has(id int64) bool
	Distance(u, v int64) float64
	KNearest(source int64, set []int64, k int) []network.Neighbor
}

// Precomputer is implemented by providers that can expand sources in bulk.
type Precomputer interface {
	Precompute(ctx context.Context, sources []int64, workers int) error
}

type ExistingAmenity struct {
	Node int64  `yaml:"node" bson:"node"`
	Type string `yaml:"type" bson:"type"`
}

type CandidateSite struct {
	ID       int64 `yaml:"id" bson:"id"`
	Capacity int   `yaml:"capacity" bson:"capacity"`
}

// Problem is one allocation run: inputs plus run parameters.
type Problem struct {
	Distances    Distances
	Model        *walkscore.Model
	Residentials []int64
	Candidates   []CandidateSite
	Existing     []ExistingAmenity
	// 未出现的类型预算为0
	Budgets map[string]int
	// 同一站点能否放置多个同类设施
	AllowRepeat bool
	// 只重算PWL半径内的住宅
	Prune bool
	// 15分钟覆盖率半径，0取默认值
	CoverageRadius float64
}

func (p *Problem) Budget(typ string) int {
	return p.Budgets[typ]
}

func (p *Problem) coverageRadius() float64 {
	if p.CoverageRadius > 0 {
		return p.CoverageRadius
	}
	return DefaultCoverageRadius
}

// SortedCandidates returns the candidate sites in ascending id order.
func (p *Problem) SortedCandidates() []CandidateSite {
	out := append([]CandidateSite(nil), p.Candidates...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Prepare expands the distance trees of every residential when the provider
// supports bulk precomputation.
func (p *Problem) Prepare(ctx context.Context, workers int) error {
	if pc, ok := p.Distances.(Precomputer); ok {
		return pc.Precompute(ctx, p.Residentials, workers)
	}
	return nil
}

// Validate reports infeasible or inconsistent configurations before any
// computation starts.
func (p *Problem) Validate() error {
	if p.Distances == nil || p.Model == nil {
		return fmt.Errorf("%w: missing distances or model", ErrInfeasible)
	}
	catalog := p.Model.Catalog()
	seen := make(map[int64]bool, len(p.Residentials))
	for _, r := range p.Residentials {
		if seen[r] {
			return fmt.Errorf("%w: duplicate residential %d", ErrInfeasible, r)
		}
		if !p.Distances.Has(r) {
			return fmt.Errorf("%w: residential %d is not a network node", ErrInfeasible, r)
		}
		seen[r] = true
	}
	totalCapacity := 0
	sites := make(map[int64]bool, len(p.Candidates))
	for _, c := range p.Candidates {
		if sites[c.ID] {
			return fmt.Errorf("%w: duplicate candidate site %d", ErrInfeasible, c.ID)
		}
		if c.Capacity < 1 {
			return fmt.Errorf("%w: candidate site %d has capacity %d", ErrInfeasible, c.ID, c.Capacity)
		}
		if !p.Distances.Has(c.ID) {
			return fmt.Errorf("%w: candidate site %d is not a network node", ErrInfeasible, c.ID)
		}
		sites[c.ID] = true
		totalCapacity += c.Capacity
	}
	for _, e := range p.Existing {
		if _, ok := catalog.Type(e.Type); !ok {
			return fmt.Errorf("%w: existing amenity at %d has unknown type %s", ErrInfeasible, e.Node, e.Type)
		}
		if !p.Distances.Has(e.Node) {
			return fmt.Errorf("%w: existing amenity at %d is not a network node", ErrInfeasible, e.Node)
		}
	}
	// 按名称排序，保证报错稳定
	names := lo.Keys(p.Budgets)
	sort.Strings(names)
	for _, name := range names {
		if _, ok := catalog.Type(name); !ok {
			return fmt.Errorf("%w: budget for unknown type %s", ErrInfeasible, name)
		}
	}
	for _, name := range catalog.Names() {
		k := p.Budgets[name]
		if k < 0 {
			return fmt.Errorf("%w: negative budget %d for %s", ErrInfeasible, k, name)
		}
		if k > totalCapacity {
			return fmt.Errorf("%w: budget %d for %s exceeds total capacity %d", ErrInfeasible, k, name, totalCapacity)
		}
		if !p.AllowRepeat && k > len(p.Candidates) {
			return fmt.Errorf("%w: budget %d for %s exceeds %d sites without repeats", ErrInfeasible, k, name, len(p.Candidates))
		}
	}
	if p.CoverageRadius < 0 {
		return fmt.Errorf("%w: negative coverage radius %v", ErrInfeasible, p.CoverageRadius)
	}
	if sum := lo.Sum(lo.Values(p.Budgets)); sum > totalCapacity {
		log.Warnf("summed budgets %d exceed total capacity %d, some units will stay unplaced", sum, totalCapacity)
	}
	return nil
}

// CheckAllocation verifies budget and capacity invariants of a result.
func (p *Problem) CheckAllocation(a *Allocation) error {
	capacity := make(map[int64]int, len(p.Candidates))
	for _, c := range p.Candidates {
		capacity[c.ID] = c.Capacity
	}
	for _, e := range a.Entries() {
		c, ok := capacity[e.Site]
		if !ok {
			return fmt.Errorf("%w: site %d is not a candidate", ErrInvariant, e.Site)
		}
		if _, ok := p.Model.Catalog().Type(e.Type); !ok {
			return fmt.Errorf("%w: unknown type %s", ErrInvariant, e.Type)
		}
		if n := a.SiteTotal(e.Site); n > c {
			return fmt.Errorf("%w: site %d holds %d > capacity %d", ErrInvariant, e.Site, n, c)
		}
		if !p.AllowRepeat && e.Count > 1 {
			return fmt.Errorf("%w: site %d holds %d units of %s", ErrInvariant, e.Site, e.Count, e.Type)
		}
		if n := a.TypeTotal(e.Type); n > p.Budget(e.Type) {
			return fmt.Errorf("%w: %d units of %s > budget %d", ErrInvariant, n, e.Type, p.Budget(e.Type))
		}
	}
	return nil
}

// ExistingOf returns the existing amenity nodes per type in catalog order.
func (p *Problem) ExistingOf() [][]int64 {
	catalog := p.Model.Catalog()
	out := make([][]int64, catalog.Len())
	for _, e := range p.Existing {
		a, _ := catalog.Index(e.Type)
		out[a] = append(out[a], e.Node)
	}
	return out
}
