package milp

import (
	"context"
	"fmt"
	"time"
)

type Status int

const (
	// 时限内没有可行解，或问题不可行
	StatusNoSolution Status = iota
	// 达到时限，返回当前最好的可行解
	StatusFeasible
	// 证明最优（在gap容差内）
	StatusOptimal
)

func (s Status) String() string {
	switch s {
	case StatusNoSolution:
		return "no_solution"
	case StatusFeasible:
		return "feasible"
	case StatusOptimal:
		return "optimal"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type Options struct {
	// 0 表示不限时
	TimeLimit time.Duration
	// 相对最优性gap
	Gap float64
	// 初始解，可为nil；完整可行时直接作为incumbent，否则只取整数部分
	Hint []float64
}

type Solution struct {
	Status    Status
	Values    []float64
	Objective float64
	// 最优目标值的上界
	Bound float64
	Gap   float64
	Nodes int
}

// Solver is the black box the exact optimizer delegates to. Reaching a limit
// is reported through Status, not as an error.
type Solver interface {
	Solve(ctx context.Context, m *Model, opts Options) (*Solution, error)
}
