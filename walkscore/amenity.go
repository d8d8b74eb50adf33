package walkscore

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
)

var (
	ErrInvalidType   = errors.New("invalid amenity type")
	ErrDuplicateType = errors.New("duplicate amenity type")
	ErrUnknownType   = errors.New("unknown amenity type")
)

type Category int

const (
	// 只看最近的一个
	CategoryPlain Category = iota
	// 按排名加权前r个
	CategoryDepth
)

func (c Category) String() string {
	switch c {
	case CategoryPlain:
		return "plain"
	case CategoryDepth:
		return "depth"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

func ParseCategory(s string) (Category, error) {
	switch s {
	case "", "plain":
		return CategoryPlain, nil
	case "depth":
		return CategoryDepth, nil
	default:
		return CategoryPlain, fmt.Errorf("%w: category %q", ErrInvalidType, s)
	}
}

// AmenityType is tagged by Category; rank weights exist only for depth types.
type AmenityType struct {
	name        string
	category    Category
	weight      float64
	rankWeights []float64
}

func NewPlainType(name string, weight float64) (AmenityType, error) {
	if err := checkWeight(name, weight); err != nil {
		return AmenityType{}, err
	}
	return AmenityType{name: name, category: CategoryPlain, weight: weight}, nil
}

func NewDepthType(name string, weight float64, rankWeights []float64) (AmenityType, error) {
	if err := checkWeight(name, weight); err != nil {
		return AmenityType{}, err
	}
	if len(rankWeights) == 0 {
		return AmenityType{}, fmt.Errorf("%w: %s has no rank weights", ErrInvalidType, name)
	}
	for p, w := range rankWeights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return AmenityType{}, fmt.Errorf("%w: %s rank %d weight %v", ErrInvalidType, name, p+1, w)
		}
		if p > 0 && w > rankWeights[p-1] {
			return AmenityType{}, fmt.Errorf("%w: %s rank weights increase at rank %d", ErrInvalidType, name, p+1)
		}
	}
	return AmenityType{
		name:        name,
		category:    CategoryDepth,
		weight:      weight,
		rankWeights: append([]float64(nil), rankWeights...),
	}, nil
}

func checkWeight(name string, weight float64) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidType)
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: %s weight %v", ErrInvalidType, name, weight)
	}
	return nil
}

func (t AmenityType) Name() string {
	return t.name
}

func (t AmenityType) Category() Category {
	return t.category
}

func (t AmenityType) Weight() float64 {
	return t.weight
}

// RankWeight returns w_a,p for the 0-based rank p, 1 for the only rank of a
// plain type and 0 past the table.
func (t AmenityType) RankWeight(p int) float64 {
	if t.category == CategoryPlain {
		if p == 0 {
			return 1
		}
		return 0
	}
	if p < 0 || p >= len(t.rankWeights) {
		return 0
	}
	return t.rankWeights[p]
}

func (t AmenityType) RankWeights() []float64 {
	if t.category == CategoryPlain {
		return []float64{1}
	}
	return append([]float64(nil), t.rankWeights...)
}

// Depth is how many nearest instances the type looks at.
func (t AmenityType) Depth() int {
	if t.category == CategoryPlain {
		return 1
	}
	return len(t.rankWeights)
}

// Catalog is the ordered amenity type set of one run.
type Catalog struct {
	types       []AmenityType
	index       map[string]int
	totalWeight float64
}

func NewCatalog(types ...AmenityType) (*Catalog, error) {
	c := &Catalog{
		types: make([]AmenityType, 0, len(types)),
		index: make(map[string]int, len(types)),
	}
	for _, t := range types {
		if t.name == "" {
			return nil, fmt.Errorf("%w: zero value type", ErrInvalidType)
		}
		if _, ok := c.index[t.name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateType, t.name)
		}
		c.index[t.name] = len(c.types)
		c.types = append(c.types, t)
		c.totalWeight += t.weight
	}
	if c.totalWeight <= 0 {
		return nil, fmt.Errorf("%w: total weight must be positive", ErrInvalidType)
	}
	return c, nil
}

func (c *Catalog) Len() int {
	return len(c.types)
}

func (c *Catalog) Types() []AmenityType {
	return c.types
}

func (c *Catalog) At(i int) AmenityType {
	return c.types[i]
}

func (c *Catalog) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

func (c *Catalog) Type(name string) (AmenityType, bool) {
	i, ok := c.index[name]
	if !ok {
		return AmenityType{}, false
	}
	return c.types[i], true
}

func (c *Catalog) Names() []string {
	return lo.Map(c.types, func(t AmenityType, _ int) string { return t.name })
}

// TotalWeight is Σw_a, the maximum attainable total divided by 100.
func (c *Catalog) TotalWeight() float64 {
	return c.totalWeight
}

// WithDepth applies the per-type depth run parameter r by truncating rank
// tables. A plain type only accepts r=1; r beyond a table is rejected.
func (c *Catalog) WithDepth(depths map[string]int) (*Catalog, error) {
	types := make([]AmenityType, len(c.types))
	copy(types, c.types)
	for name, r := range depths {
		i, ok := c.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
		}
		t := types[i]
		if r < 1 || r > t.Depth() {
			return nil, fmt.Errorf("%w: %s depth %d outside [1,%d]", ErrInvalidType, name, r, t.Depth())
		}
		if t.category == CategoryDepth {
			t.rankWeights = t.rankWeights[:r:r]
		}
		types[i] = t
	}
	return NewCatalog(types...)
}
