package exact

import (
	"context"
	"fmt"
	"math"
	"sort"

	"git.fiblab.net/sim/walkability/milp"
	"git.fiblab.net/sim/walkability/optimizer"
)

type yKey struct {
	site int64
	typ  int
}

// option is one amenity instance that may fill a rank: an existing amenity
// (y < 0, one unit) or up to units of a candidate site bounded by y.
type option struct {
	y     int
	site  int64
	score float64
	units int
}

// group is the rank assignment block of one residential and type.
type group struct {
	typ     int
	options []option
	// [名次][选项] -> z，权重为0的名次为nil
	z [][]int
}

type formulation struct {
	model *milp.Model
	keys  []yKey
	y     map[yKey]int
	// 每个住宅的f变量及其分组
	f      []int
	groups [][]group
}

// build writes the allocation problem as a MILP. Per residential, type and
// rank a continuous z picks one instance; with non-increasing rank weights
// the best assignment reproduces the sorted top-r sum, so only y is integer.
// A candidate enters a block only if it is closer than the r-th nearest
// existing amenity, and a block has no more ranks than usable units.
func build(ctx context.Context, p *optimizer.Problem) (*formulation, error) {
	catalog := p.Model.Catalog()
	pwl := p.Model.PWL()
	m := milp.NewModel()
	f := &formulation{
		model:  m,
		y:      make(map[yKey]int),
		f:      make([]int, len(p.Residentials)),
		groups: make([][]group, len(p.Residentials)),
	}
	sites := p.SortedCandidates()

	units := make(map[yKey]int)
	for a, t := range catalog.Types() {
		k := p.Budget(t.Name())
		if k == 0 {
			continue
		}
		budget := make([]milp.Term, 0, len(sites))
		for _, c := range sites {
			ub := c.Capacity
			if !p.AllowRepeat {
				ub = 1
			}
			ub = min(ub, k)
			key := yKey{site: c.ID, typ: a}
			j := m.AddVar(fmt.Sprintf("y[%d,%s]", c.ID, t.Name()), 0, float64(ub), true, 0)
			f.y[key] = j
			f.keys = append(f.keys, key)
			units[key] = ub
			budget = append(budget, milp.Term{Var: j, Coef: 1})
		}
		m.AddConstraint("budget["+t.Name()+"]", budget, float64(k))
	}
	for _, c := range sites {
		terms := make([]milp.Term, 0, catalog.Len())
		for a := range catalog.Types() {
			if j, ok := f.y[yKey{site: c.ID, typ: a}]; ok {
				terms = append(terms, milp.Term{Var: j, Coef: 1})
			}
		}
		// 单一类型时y的上界已不超过容量
		if len(terms) > 1 {
			m.AddConstraint(fmt.Sprintf("capacity[%d]", c.ID), terms, float64(c.Capacity))
		}
	}

	existing := p.ExistingOf()
	n := float64(len(p.Residentials))
	W := catalog.TotalWeight()
	for i, r := range p.Residentials {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fi := m.AddVar(fmt.Sprintf("f[%d]", r), 0, 100, false, 1/n)
		f.f[i] = fi
		row := []milp.Term{{Var: fi, Coef: 1}}
		for a, t := range catalog.Types() {
			g := group{typ: a}
			nearest := p.Distances.KNearest(r, existing[a], t.Depth())
			// 不比第r近的现有设施更近的候选点不可能进入前r名
			cutoff := math.Inf(1)
			if len(nearest) == t.Depth() {
				cutoff = nearest[len(nearest)-1].Distance
			}
			available := 0
			for _, nb := range nearest {
				if s := pwl.Score(nb.Distance); s > 0 {
					g.options = append(g.options, option{y: -1, site: nb.ID, score: s, units: 1})
					available++
				}
			}
			for _, c := range sites {
				key := yKey{site: c.ID, typ: a}
				j, ok := f.y[key]
				if !ok {
					continue
				}
				d := p.Distances.Distance(r, c.ID)
				if !(d < cutoff) {
					continue
				}
				if s := pwl.Score(d); s > 0 {
					g.options = append(g.options, option{y: j, site: c.ID, score: s, units: units[key]})
					available += units[key]
				}
			}
			if len(g.options) == 0 {
				continue
			}
			ranks := min(t.Depth(), available)
			g.z = make([][]int, ranks)
			// [选项] -> 各名次的z
			uses := make([][]milp.Term, len(g.options))
			for rank := 0; rank < ranks; rank++ {
				w := t.Weight() * t.RankWeight(rank)
				if w == 0 {
					continue
				}
				g.z[rank] = make([]int, len(g.options))
				slot := make([]milp.Term, 0, len(g.options))
				for o, opt := range g.options {
					z := m.AddVar(fmt.Sprintf("z[%d,%s,%d,%d]", r, t.Name(), rank+1, o), 0, math.Inf(1), false, 0)
					g.z[rank][o] = z
					slot = append(slot, milp.Term{Var: z, Coef: 1})
					uses[o] = append(uses[o], milp.Term{Var: z, Coef: 1})
					row = append(row, milp.Term{Var: z, Coef: -w * opt.score / W})
				}
				m.AddConstraint(fmt.Sprintf("rank[%d,%s,%d]", r, t.Name(), rank+1), slot, 1)
			}
			for o, opt := range g.options {
				terms := uses[o]
				switch {
				case len(terms) == 0:
				case opt.y >= 0:
					terms = append(terms, milp.Term{Var: opt.y, Coef: -1})
					m.AddConstraint(fmt.Sprintf("open[%d,%s,%d]", r, t.Name(), o), terms, 0)
				case len(terms) > 1:
					// 单名次时由rank行保证
					m.AddConstraint(fmt.Sprintf("once[%d,%s,%d]", r, t.Name(), o), terms, 1)
				}
			}
			f.groups[i] = append(f.groups[i], g)
		}
		m.AddConstraint(fmt.Sprintf("score[%d]", r), row, 0)
	}
	log.Debugf("formulation: %d variables (%d integer), %d constraints",
		m.NumVars(), m.NumIntegers(), m.NumConstraints())
	return f, nil
}

// decode rounds the integer variables into an allocation.
func (f *formulation) decode(p *optimizer.Problem, values []float64) *optimizer.Allocation {
	alloc := optimizer.NewAllocation()
	names := p.Model.Catalog().Names()
	for _, key := range f.keys {
		if n := int(math.Round(values[f.y[key]])); n > 0 {
			alloc.Add(key.site, names[key.typ], n)
		}
	}
	return alloc
}

// hint encodes a valid allocation as a complete feasible solver start: y
// from the counts, each rank filled with the best remaining instance, and f
// the resulting score.
func (f *formulation) hint(p *optimizer.Problem, alloc *optimizer.Allocation) []float64 {
	x := make([]float64, f.model.NumVars())
	catalog := p.Model.Catalog()
	names := catalog.Names()
	for _, key := range f.keys {
		x[f.y[key]] = float64(alloc.Count(key.site, names[key.typ]))
	}
	W := catalog.TotalWeight()
	for i, groups := range f.groups {
		total := 0.0
		for _, g := range groups {
			t := catalog.At(g.typ)
			// 每个可用单位一项，按得分降序
			picks := make([]int, 0, len(g.z))
			for o, opt := range g.options {
				n := 1
				if opt.y >= 0 {
					n = alloc.Count(opt.site, names[g.typ])
				}
				for ; n > 0; n-- {
					picks = append(picks, o)
				}
			}
			sort.SliceStable(picks, func(a, b int) bool {
				return g.options[picks[a]].score > g.options[picks[b]].score
			})
			for rank, zs := range g.z {
				if rank >= len(picks) {
					break
				}
				if zs == nil {
					continue
				}
				o := picks[rank]
				x[zs[o]] = 1
				total += t.Weight() * t.RankWeight(rank) * g.options[o].score / W
			}
		}
		x[f.f[i]] = math.Min(total, 100)
	}
	return x
}
