package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/systemstart/matrixci/pkg/api"
	"github.com/systemstart/matrixci/pkg/matrix"
)

// StepResult records one step's terminal state within a job instance.
type StepResult struct {
	Name    string  `yaml:"name"`
	Outcome Outcome `yaml:"outcome"`
	Message string  `yaml:"message,omitempty"`
}

// StepExecutor runs the ordered steps of one job instance sequentially.
type StepExecutor struct {
	Invoker ActionInvoker
}

// Run walks the steps in order. A step with a false condition is
// Skipped. After the first failure, remaining steps are Skipped unless
// flagged always. A cancelled context skips everything still pending and
// the instance reports Skipped rather than Failure. The instance outcome
// is Failure iff an invoked step failed.
func (e *StepExecutor) Run(ctx context.Context, job *api.Job, inst *matrix.Instance, env map[string]string) ([]StepResult, Outcome) {
	results := make([]StepResult, 0, len(job.Steps))
	outcomes := make(map[string]string, len(job.Steps))

	failed := false
	cancelled := false

	record := func(step api.StepConfig, outcome Outcome, err error) {
		res := StepResult{Name: step.Name, Outcome: outcome}
		if err != nil {
			res.Message = err.Error()
		}
		results = append(results, res)
		outcomes[step.Name] = outcome.String()
	}

	for _, step := range job.Steps {
		if ctx.Err() != nil {
			cancelled = true
		}
		if cancelled || (failed && !step.Always) {
			record(step, Skipped, nil)
			continue
		}

		data, err := e.stepScope(job, inst, env, step, outcomes, failed)
		if err != nil {
			record(step, Failure, err)
			failed = true
			continue
		}

		ok, err := evalCondition(step.Name, step.If, data)
		if err != nil {
			record(step, Failure, err)
			failed = true
			continue
		}
		if !ok {
			slog.Debug("step condition not met", "job", job.Name, "instance", inst.ID(), "step", step.Name)
			record(step, Skipped, nil)
			continue
		}

		params, err := renderParams(step.Name, step.Params, data)
		if err != nil {
			record(step, Failure, err)
			failed = true
			continue
		}

		slog.Info("invoking step", "job", job.Name, "instance", inst.ID(), "step", step.Name, "action", step.Action)

		err = e.invoke(ctx, step.Action, params)
		if err != nil && ctx.Err() != nil {
			// Interrupted by cancellation, not a genuine failure.
			cancelled = true
			record(step, Skipped, nil)
			continue
		}
		if err != nil {
			slog.Warn("step failed", "job", job.Name, "instance", inst.ID(), "step", step.Name, "error", err)
			record(step, Failure, err)
			failed = true
			continue
		}
		record(step, Success, nil)
	}

	switch {
	case failed:
		return results, Failure
	case cancelled:
		return results, Skipped
	default:
		return results, Success
	}
}

// stepScope builds the template scope for one step, rendering the step's
// own env overlay first so params and the condition can refer to it.
func (e *StepExecutor) stepScope(job *api.Job, inst *matrix.Instance, env map[string]string, step api.StepConfig, outcomes map[string]string, failed bool) (scope, error) {
	data := newScope(job.Name, inst.Values(), env, outcomes, failed)
	if len(step.Env) == 0 {
		return data, nil
	}

	stepEnv, err := renderParams(step.Name+".env", step.Env, data)
	if err != nil {
		return nil, err
	}
	data["env"] = mergeEnv(env, stepEnv)
	return data, nil
}

// invoke shields the walk from a crashing action: a panic is recorded as
// that step's failure, not the scheduler's.
func (e *StepExecutor) invoke(ctx context.Context, action string, params map[string]string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %q panicked: %v", action, r)
		}
	}()
	return e.Invoker.Invoke(ctx, action, params)
}
