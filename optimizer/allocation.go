package optimizer

import (
	"sort"
)

type placement struct {
	site int64
	typ  string
}

// Entry is one (site, type) cell of an Allocation.
type Entry struct {
	Site  int64  `yaml:"site" bson:"site"`
	Type  string `yaml:"type" bson:"type"`
	Count int    `yaml:"count" bson:"count"`
}

// Allocation maps (candidate site, amenity type) to a unit count. It is not
// safe for concurrent writes.
type Allocation struct {
	counts    map[placement]int
	siteTotal map[int64]int
	typeTotal map[string]int
	total     int
}

func NewAllocation() *Allocation {
	return &Allocation{
		counts:    make(map[placement]int),
		siteTotal: make(map[int64]int),
		typeTotal: make(map[string]int),
	}
}

// FromEntries rebuilds an allocation, summing repeated cells.
func FromEntries(entries []Entry) *Allocation {
	a := NewAllocation()
	for _, e := range entries {
		a.Add(e.Site, e.Type, e.Count)
	}
	return a
}

func (a *Allocation) Add(site int64, typ string, n int) {
	if n < 0 {
		log.Panicf("negative allocation %d of %s at %d", n, typ, site)
	}
	if n == 0 {
		return
	}
	a.counts[placement{site, typ}] += n
	a.siteTotal[site] += n
	a.typeTotal[typ] += n
	a.total += n
}

func (a *Allocation) Count(site int64, typ string) int {
	return a.counts[placement{site, typ}]
}

func (a *Allocation) SiteTotal(site int64) int {
	return a.siteTotal[site]
}

func (a *Allocation) TypeTotal(typ string) int {
	return a.typeTotal[typ]
}

func (a *Allocation) Total() int {
	return a.total
}

// Entries lists the non-zero cells ordered by site then type.
func (a *Allocation) Entries() []Entry {
	out := make([]Entry, 0, len(a.counts))
	for k, n := range a.counts {
		out = append(out, Entry{Site: k.site, Type: k.typ, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Site == out[j].Site {
			return out[i].Type < out[j].Type
		}
		return out[i].Site < out[j].Site
	})
	return out
}

// Sites returns the site of every unit of typ, repeated per unit, ascending.
func (a *Allocation) Sites(typ string) []int64 {
	out := make([]int64, 0, a.typeTotal[typ])
	for _, e := range a.Entries() {
		if e.Type != typ {
			continue
		}
		for n := 0; n < e.Count; n++ {
			out = append(out, e.Site)
		}
	}
	return out
}

func (a *Allocation) Clone() *Allocation {
	return FromEntries(a.Entries())
}

func (a *Allocation) Equal(b *Allocation) bool {
	if a.total != b.total || len(a.counts) != len(b.counts) {
		return false
	}
	for k, n := range a.counts {
		if b.counts[k] != n {
			return false
		}
	}
	return true
}
