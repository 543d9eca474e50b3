package timetable

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolcore/timetable-engine/internal/cpsat"
)

// Status is the engine-level solve verdict.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
	StatusModelInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusModelInvalid:
		return "model_invalid"
	default:
		return "unknown"
	}
}

// Options govern one solve.
type Options struct {
	// MaxTime bounds the whole search wall-clock; zero means the 10s default.
	MaxTime time.Duration
	// Workers is a parallelism hint for the backend. The current backend
	// searches sequentially and deterministically, so the hint is recorded
	// and clamped but does not change results.
	Workers int
	// RandomSeed pins the run for reproducibility bookkeeping. The backend
	// is deterministic, so identical inputs already produce identical
	// schedules; the seed is written to the solve-start log and is not
	// part of Result.
	RandomSeed *int64
	// LogProgress emits an info log per incumbent improvement.
	LogProgress bool
}

func (o Options) withDefaults() Options {
	if o.MaxTime <= 0 {
		o.MaxTime = 10 * time.Second
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

// Result is the outcome of one solve.
type Result struct {
	RunID     string
	Status    Status
	Objective int
	Valuation cpsat.Solution
	Elapsed   time.Duration
}

// Solve configures and runs the backend within the time budget and maps its
// verdict onto the engine status taxonomy.
func Solve(ctx context.Context, bm *BuiltModel, opts Options, log *zap.Logger, metrics *Metrics) Result {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()

	runID := uuid.NewString()
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.Duration("max_time", opts.MaxTime),
		zap.Int("workers", opts.Workers),
		zap.Int("variables", bm.Model.NumVars()),
		zap.Int("constraints", bm.Model.NumConstraints()),
		zap.Int("tuples", len(bm.Index.Tuples())),
	}
	if opts.RandomSeed != nil {
		fields = append(fields, zap.Int64("random_seed", *opts.RandomSeed))
	}
	log.Info("solve started", fields...)

	var onImprove func(int)
	if opts.LogProgress {
		onImprove = func(objective int) {
			log.Info("incumbent improved",
				zap.String("run_id", runID),
				zap.Int("objective", objective),
			)
		}
	}

	start := time.Now()
	sol := bm.Model.Solve(ctx, opts.MaxTime, onImprove)
	elapsed := time.Since(start)

	res := Result{
		RunID:     runID,
		Objective: sol.Objective,
		Valuation: sol,
		Elapsed:   elapsed,
	}
	switch sol.Status {
	case cpsat.StatusOptimal:
		res.Status = StatusOptimal
	case cpsat.StatusFeasible:
		res.Status = StatusFeasible
	case cpsat.StatusInfeasible:
		res.Status = StatusInfeasible
	default:
		res.Status = StatusUnknown
	}

	log.Info("solve finished",
		zap.String("run_id", runID),
		zap.String("status", res.Status.String()),
		zap.Int("objective", res.Objective),
		zap.Duration("elapsed", elapsed),
	)
	if metrics != nil {
		metrics.ObserveSolve(res.Status.String(), elapsed, bm.Model.NumVars(), bm.Model.NumConstraints())
	}
	return res
}
