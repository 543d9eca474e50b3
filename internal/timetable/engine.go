package timetable

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/schoolcore/timetable-engine/pkg/errors"
)

// Engine runs the full scheduling pipeline: normalize, pre-validate, build,
// solve, extract, post-validate, and explain on infeasibility. Stages fail
// fast; warnings are carried alongside success.
type Engine struct {
	logger  *zap.Logger
	metrics *Metrics
	opts    Options
}

// NewEngine wires the pipeline dependencies. A nil logger means no logging;
// nil metrics disables observation.
func NewEngine(logger *zap.Logger, metrics *Metrics, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, metrics: metrics, opts: opts}
}

// Outcome is the end-to-end result of one run.
type Outcome struct {
	RunID         string
	PreValidation PreValidationResult
	Status        Status
	Objective     int
	Schedule      *Schedule
	Validation    *ValidationResult
	Explanations  []string
}

// Run executes the pipeline on an already-parsed raw configuration.
func (e *Engine) Run(ctx context.Context, raw RawConfig) (*Outcome, error) {
	p, err := Normalize(raw, e.logger)
	if err != nil {
		return nil, err
	}
	return e.RunProblem(ctx, p)
}

// RunProblem executes the pipeline on a canonical Problem.
func (e *Engine) RunProblem(ctx context.Context, p *Problem) (*Outcome, error) {
	out := &Outcome{}

	out.PreValidation = PreValidate(p)
	for _, w := range out.PreValidation.Warnings {
		e.logger.Warn("pre-validation", zap.String("message", w))
	}
	if !out.PreValidation.IsValid() {
		out.Status = StatusInfeasible
		return out, &apperrors.PreValidationError{Messages: out.PreValidation.Errors}
	}

	bm, err := BuildModel(p, e.logger)
	if err != nil {
		out.Status = StatusModelInvalid
		return out, err
	}

	res := Solve(ctx, bm, e.opts, e.logger, e.metrics)
	out.RunID = res.RunID
	out.Status = res.Status
	out.Objective = res.Objective

	switch res.Status {
	case StatusInfeasible:
		out.Explanations = ExplainInfeasibility(p)
		return out, apperrors.ErrInfeasible
	case StatusUnknown:
		return out, apperrors.ErrTimeout
	}

	out.Schedule = Extract(p, bm.Index, res.Valuation)
	out.Schedule.Status = res.Status.String()
	out.Schedule.Objective = res.Objective

	validation := Validate(p, bm.Index, res.Valuation)
	out.Validation = &validation
	if !validation.IsValid {
		return out, apperrors.ErrValidationFailure
	}
	return out, nil
}
