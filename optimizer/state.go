package optimizer

import (
	"context"
	"math"
	"sort"
	"time"

	"git.fiblab.net/sim/walkability/walkscore"
)

type reachItem struct {
	res int
	d   float64
}

// State is the nearest-set cache of one greedy run. Gain only reads it and
// may run concurrently; Apply is single-writer.
type State struct {
	p     *Problem
	model *walkscore.Model
	types []walkscore.AmenityType

	// [住宅][类型] 升序的前r个最近距离
	nearest [][][]float64
	contrib [][]float64
	total   []float64
	score   []float64

	objective float64
	// 候选点 -> 可能受影响的住宅
	reach    map[int64][]reachItem
	sites    []int64
	capacity map[int64]int
	alloc    *Allocation
}

func NewState(ctx context.Context, p *Problem, workers int) (*State, error) {
	start := time.Now()
	if err := p.Prepare(ctx, workers); err != nil {
		return nil, err
	}
	catalog := p.Model.Catalog()
	s := &State{
		p:        p,
		model:    p.Model,
		types:    catalog.Types(),
		nearest:  make([][][]float64, len(p.Residentials)),
		contrib:  make([][]float64, len(p.Residentials)),
		total:    make([]float64, len(p.Residentials)),
		score:    make([]float64, len(p.Residentials)),
		reach:    make(map[int64][]reachItem, len(p.Candidates)),
		capacity: make(map[int64]int, len(p.Candidates)),
		alloc:    NewAllocation(),
	}
	existing := p.ExistingOf()
	sum := 0.0
	for i, r := range p.Residentials {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.nearest[i] = make([][]float64, len(s.types))
		s.contrib[i] = make([]float64, len(s.types))
		for a, t := range s.types {
			s.nearest[i][a] = distancesOf(p.Distances.KNearest(r, existing[a], t.Depth()))
			s.contrib[i][a] = s.model.Contribution(t, s.nearest[i][a])
			s.total[i] += s.contrib[i][a]
		}
		s.score[i] = s.model.Aggregate(s.total[i])
		sum += s.score[i]
	}
	if len(p.Residentials) > 0 {
		s.objective = sum / float64(len(p.Residentials))
	}

	radius := s.model.PWL().Radius()
	reached := 0
	for _, c := range p.SortedCandidates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.sites = append(s.sites, c.ID)
		s.capacity[c.ID] = c.Capacity
		items := make([]reachItem, 0)
		for i, r := range p.Residentials {
			d := p.Distances.Distance(r, c.ID)
			// 半径外的新设施得分为0，不可能改变任何贡献
			if p.Prune && !(d < radius) {
				continue
			}
			items = append(items, reachItem{res: i, d: d})
		}
		s.reach[c.ID] = items
		reached += len(items)
	}
	log.Debugf("state built for %d residentials and %d candidates (%d reach entries, prune=%v) in %v",
		len(p.Residentials), len(p.Candidates), reached, p.Prune, time.Since(start))
	return s, nil
}

// insertNearest returns list with d inserted and truncated to depth, or false
// if d would not enter the list.
func insertNearest(list []float64, d float64, depth int) ([]float64, bool) {
	if math.IsInf(d, 1) {
		return nil, false
	}
	if len(list) >= depth && d >= list[depth-1] {
		return nil, false
	}
	pos := sort.SearchFloat64s(list, d)
	n := len(list) + 1
	if n > depth {
		n = depth
	}
	out := make([]float64, n)
	copy(out, list[:pos])
	out[pos] = d
	copy(out[pos+1:], list[pos:])
	return out, true
}

func (s *State) change(a int, site int64, commit bool) float64 {
	n := len(s.score)
	if n == 0 {
		return 0
	}
	t := s.types[a]
	delta := 0.0
	for _, e := range s.reach[site] {
		list, ok := insertNearest(s.nearest[e.res][a], e.d, t.Depth())
		if !ok {
			continue
		}
		c := s.model.Contribution(t, list)
		old := s.contrib[e.res][a]
		if c == old {
			if commit {
				s.nearest[e.res][a] = list
			}
			continue
		}
		total := s.total[e.res] - old + c
		score := s.model.Aggregate(total)
		delta += score - s.score[e.res]
		if commit {
			s.nearest[e.res][a] = list
			s.contrib[e.res][a] = c
			s.total[e.res] = total
			s.score[e.res] = score
		}
	}
	return delta / float64(n)
}

// Gain is the objective increase of one more unit of type a at site.
func (s *State) Gain(a int, site int64) float64 {
	return s.change(a, site, false)
}

// Apply commits one unit of type a at site and returns the committed gain.
func (s *State) Apply(a int, site int64) float64 {
	if !s.eligible(a, site) {
		log.Panicf("apply %s at ineligible site %d", s.types[a].Name(), site)
	}
	gain := s.change(a, site, true)
	s.alloc.Add(site, s.types[a].Name(), 1)
	s.capacity[site]--
	s.objective += gain
	return gain
}

func (s *State) eligible(a int, site int64) bool {
	name := s.types[a].Name()
	if s.capacity[site] <= 0 {
		return false
	}
	if !s.p.AllowRepeat && s.alloc.Count(site, name) > 0 {
		return false
	}
	return true
}

// Exhausted reports whether type a has used its whole budget.
func (s *State) Exhausted(a int) bool {
	name := s.types[a].Name()
	return s.alloc.TypeTotal(name) >= s.p.Budget(name)
}

// Eligible lists the sites that can take one more unit of type a, ascending.
func (s *State) Eligible(a int) []int64 {
	if s.Exhausted(a) {
		return nil
	}
	out := make([]int64, 0, len(s.sites))
	for _, site := range s.sites {
		if s.eligible(a, site) {
			out = append(out, site)
		}
	}
	return out
}

func (s *State) Types() []walkscore.AmenityType {
	return s.types
}

func (s *State) Objective() float64 {
	return s.objective
}

func (s *State) Remaining(site int64) int {
	return s.capacity[site]
}

// Allocation is the live allocation built so far.
func (s *State) Allocation() *Allocation {
	return s.alloc
}

// Scores reports the live per-residential scores. With pruning, weighted
// distances ignore new sites beyond the scoring radius.
func (s *State) Scores() []walkscore.AccessibilityScore {
	out := make([]walkscore.AccessibilityScore, len(s.score))
	for i, r := range s.p.Residentials {
		wd := 0.0
		for a, t := range s.types {
			wd += s.model.WeightedDistance(t, s.nearest[i][a])
		}
		out[i] = walkscore.AccessibilityScore{Residential: r, WeightedDistance: wd, Score: s.score[i]}
	}
	return out
}
