package milp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const lpTol = 1e-10

var (
	errInfeasible = errors.New("relaxation infeasible")
	errUnbounded  = errors.New("relaxation unbounded")
)

// relax solves the LP relaxation under the given bounds. Shifting x = lower + x'
// makes every variable non-negative; each row and each finite upper bound gets
// its own slack, so the standard form always has full row rank.
func (m *Model) relax(lower, upper []float64) ([]float64, float64, error) {
	n := len(m.vars)
	for j := 0; j < n; j++ {
		if lower[j] > upper[j]+1e-9 {
			return nil, 0, errInfeasible
		}
	}
	rows := make([][]float64, 0, len(m.cons)+n)
	rhs := make([]float64, 0, len(m.cons)+n)
	for _, c := range m.cons {
		row := make([]float64, n)
		r := c.rhs
		for _, t := range c.terms {
			row[t.Var] += t.Coef
			r -= t.Coef * lower[t.Var]
		}
		rows = append(rows, row)
		rhs = append(rhs, r)
	}
	for j := 0; j < n; j++ {
		if math.IsInf(upper[j], 1) {
			continue
		}
		row := make([]float64, n)
		row[j] = 1
		rows = append(rows, row)
		rhs = append(rhs, upper[j]-lower[j])
	}

	used := make([]bool, n)
	keep := make([]int, 0, len(rows))
	for i, row := range rows {
		empty := true
		for j, a := range row {
			if a != 0 {
				used[j] = true
				empty = false
			}
		}
		if !empty {
			keep = append(keep, i)
			continue
		}
		// 只剩松弛变量的行
		if rhs[i] < -1e-9 {
			return nil, 0, errInfeasible
		}
	}
	x := append([]float64(nil), lower...)
	cols := make([]int, 0, n)
	for j := 0; j < n; j++ {
		if used[j] {
			cols = append(cols, j)
			continue
		}
		// 不出现在任何行中的变量上界为无穷
		if m.vars[j].obj > 0 {
			return nil, 0, errUnbounded
		}
	}
	if len(keep) == 0 {
		return x, m.Evaluate(x), nil
	}

	R, C := len(keep), len(cols)
	A := mat.NewDense(R, C+R, nil)
	b := make([]float64, R)
	feasibleStart := true
	for r, i := range keep {
		sign := 1.0
		if rhs[i] < 0 {
			sign = -1
			feasibleStart = false
		}
		for k, j := range cols {
			if a := rows[i][j]; a != 0 {
				A.Set(r, k, sign*a)
			}
		}
		A.Set(r, C+r, sign)
		b[r] = sign * rhs[i]
	}
	c := make([]float64, C+R)
	for k, j := range cols {
		c[k] = -m.vars[j].obj
	}
	var basic []int
	if feasibleStart {
		basic = make([]int, R)
		for r := range basic {
			basic[r] = C + r
		}
	}
	_, sol, err := lp.Simplex(c, A, b, lpTol, basic)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return nil, 0, errInfeasible
	case errors.Is(err, lp.ErrUnbounded):
		return nil, 0, errUnbounded
	case err != nil:
		return nil, 0, err
	}
	for k, j := range cols {
		v := lower[j] + sol[k]
		x[j] = math.Min(math.Max(v, lower[j]), upper[j])
	}
	return x, m.Evaluate(x), nil
}
