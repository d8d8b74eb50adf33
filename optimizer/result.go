package optimizer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	// 启发式结果，不带最优性证明
	StatusHeuristic  Status = "heuristic"
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusNoSolution Status = "no_solution"
)

// Step is one committed greedy allocation.
type Step struct {
	Index     int     `yaml:"index" bson:"index"`
	Type      string  `yaml:"type" bson:"type"`
	Site      int64   `yaml:"site" bson:"site"`
	Gain      float64 `yaml:"gain" bson:"gain"`
	Objective float64 `yaml:"objective" bson:"objective"`
}

type RunMetadata struct {
	RunID     string        `yaml:"run_id" bson:"run_id"`
	Algorithm string        `yaml:"algorithm" bson:"algorithm"`
	Baseline  float64       `yaml:"baseline" bson:"baseline"`
	Objective float64       `yaml:"objective" bson:"objective"`
	WallTime  time.Duration `yaml:"wall_time" bson:"wall_time"`
	Status    Status        `yaml:"status" bson:"status"`
	// 仅精确求解时有效
	Gap   float64 `yaml:"gap" bson:"gap"`
	Bound float64 `yaml:"bound" bson:"bound"`
	Nodes int     `yaml:"nodes" bson:"nodes"`
}

// Result is what one optimization run hands back to collaborators.
type Result struct {
	Allocation *Allocation
	Before     Evaluation
	After      Evaluation
	Steps      []Step
	Meta       RunMetadata
}

// Improvement is the increase of the mean WalkScore over the baseline.
func (r *Result) Improvement() float64 {
	return r.After.Objective - r.Before.Objective
}

func NewRunMetadata(algorithm string) RunMetadata {
	return RunMetadata{
		RunID:     uuid.NewString(),
		Algorithm: algorithm,
	}
}

// Allocator is implemented by every optimization algorithm.
type Allocator interface {
	Name() string
	Run(ctx context.Context, p *Problem) (*Result, error)
}
