package runner

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/systemstart/matrixci/pkg/api"
	"github.com/systemstart/matrixci/pkg/matrix"
)

// InstanceResult is the recorded outcome of one expanded job instance.
type InstanceResult struct {
	ID      string            `yaml:"id"`
	Axes    map[string]string `yaml:"axes,omitempty"`
	Outcome Outcome           `yaml:"outcome"`
	Steps   []StepResult      `yaml:"steps"`
}

// JobResult aggregates the outcomes of one job's instances.
type JobResult struct {
	Name        string           `yaml:"name"`
	Outcome     Outcome          `yaml:"outcome"`
	NonBlocking bool             `yaml:"non-blocking,omitempty"` // failed, but continue-on-error was set
	Instances   []InstanceResult `yaml:"instances"`
}

// Scheduler runs the instances of one job concurrently, bounded by the
// job's max-parallel setting (falling back to DefaultMaxParallel; 0
// means unbounded, 1 means sequential).
type Scheduler struct {
	Invoker            ActionInvoker
	DefaultMaxParallel int
}

// RunJob executes every instance and aggregates the job outcome:
// Success iff no instance failed. Instances are independent; one
// instance failing or crashing never aborts its siblings. Instances
// skipped by cancellation do not count as failures.
func (s *Scheduler) RunJob(ctx context.Context, job *api.Job, instances []*matrix.Instance, pipelineEnv map[string]string) JobResult {
	env := mergeEnv(pipelineEnv, job.Env)
	exec := &StepExecutor{Invoker: s.Invoker}

	results := make([]InstanceResult, len(instances))

	// Plain group, not WithContext: an instance failure is recorded,
	// never propagated as an error that would cancel siblings.
	var g errgroup.Group
	limit := job.MaxParallel
	if limit == 0 {
		limit = s.DefaultMaxParallel
	}
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, inst := range instances {
		i, inst := i, inst
		g.Go(func() error {
			steps, outcome := exec.Run(ctx, job, inst, env)
			results[i] = InstanceResult{
				ID:      inst.ID(),
				Axes:    inst.Values(),
				Outcome: outcome,
				Steps:   steps,
			}
			slog.Info("instance finished", "job", job.Name, "instance", inst.ID(), "outcome", outcome.String())
			return nil
		})
	}
	_ = g.Wait()

	outcome := Success
	for _, res := range results {
		if res.Outcome == Failure {
			outcome = Failure
			break
		}
	}

	return JobResult{
		Name:        job.Name,
		Outcome:     outcome,
		NonBlocking: outcome == Failure && job.ContinueOnError,
		Instances:   results,
	}
}
