package greedy

import "fmt"

// Order decides which amenity type gets the next unit.
type Order int

const (
	// 每轮按目录顺序每种类型各分配一个
	OrderRoundRobin Order = iota
	// 按目录顺序逐类型分配至预算用完
	OrderSequential
	// 每步在所有类型和站点中选全局最优
	OrderBestPair
)

var orderNames = map[Order]string{
	OrderRoundRobin: "round-robin",
	OrderSequential: "sequential",
	OrderBestPair:   "best-pair",
}

func (o Order) String() string {
	if s, ok := orderNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Order(%d)", int(o))
}

func ParseOrder(s string) (Order, error) {
	if s == "" {
		return OrderRoundRobin, nil
	}
	for o, name := range orderNames {
		if name == s {
			return o, nil
		}
	}
	return OrderRoundRobin, fmt.Errorf("unknown greedy order: %q", s)
}
