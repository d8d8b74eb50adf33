package optimizer

import (
	"errors"
	"fmt"
)

var (
	// 配置不可行，在任何计算开始前报告
	ErrInfeasible = errors.New("infeasible configuration")
	// 目标函数下降，属于程序缺陷
	ErrNonMonotonic = errors.New("non-monotonic objective")
	// 分配违反预算或容量约束
	ErrInvariant = errors.New("allocation invariant violated")
)

// DefectError reports a step that would have made the objective worse.
type DefectError struct {
	Step      int
	Type      string
	Site      int64
	Gain      float64
	Objective float64
	Err       error
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("defect at step %d (type=%s site=%d gain=%g objective=%g): %v",
		e.Step, e.Type, e.Site, e.Gain, e.Objective, e.Err)
}

func (e *DefectError) Unwrap() error {
	return e.Err
}
