// Package runner executes a loaded pipeline definition: it expands each
// job's matrix, runs the instances' steps through an ActionInvoker, and
// aggregates the outcomes into a run report.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/systemstart/matrixci/pkg/api"
	"github.com/systemstart/matrixci/pkg/matrix"
)

// Event is the trigger that starts a run.
type Event struct {
	Type   string `yaml:"type"` // api.EventPush or api.EventPullRequest
	Branch string `yaml:"branch"`
}

// Runner orchestrates one pipeline definition. The definition is
// read-only for the run's duration; a Runner is safe for concurrent
// triggers.
type Runner struct {
	Pipeline *api.Pipeline
	Invoker  ActionInvoker

	// MaxParallelJobs bounds concurrency across jobs; MaxParallel is
	// the default bound across instances within a job, overridable per
	// job with max-parallel. 0 means unbounded.
	MaxParallelJobs int
	MaxParallel     int

	// Tracker, when set, cancels the previous in-flight run for the
	// same branch (supersede).
	Tracker *Tracker
}

// New creates a Runner for a validated pipeline definition.
func New(p *api.Pipeline, invoker ActionInvoker) *Runner {
	return &Runner{Pipeline: p, Invoker: invoker}
}

// Trigger filters jobs by the event, runs the matched jobs, and reports.
// Jobs whose trigger filters do not match are excluded from the report
// entirely. A ConfigError (bad template, matrix collision) aborts before
// any job executes; the returned report then records zero executed
// instances plus the error message, and the error is also returned.
func (r *Runner) Trigger(ctx context.Context, event Event) (*RunReport, error) {
	report := &RunReport{
		Pipeline: r.Pipeline.Name,
		Event:    event,
		Outcome:  Success,
	}

	if event.Type != api.EventPush && event.Type != api.EventPullRequest {
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}

	if r.Tracker != nil {
		var stop func()
		ctx, stop = r.Tracker.Start(ctx, event.Branch)
		defer stop()
	}

	matched := r.matchJobs(event)
	if len(matched) == 0 {
		slog.Info("no jobs matched trigger", "pipeline", r.Pipeline.Name, "event", event.Type, "branch", event.Branch)
		return report, nil
	}

	expansions, err := r.preflight(matched)
	if err != nil {
		report.Outcome = Failure
		report.ConfigError = err.Error()
		return report, err
	}

	report.Jobs = r.runJobs(ctx, matched, expansions)

	for _, job := range report.Jobs {
		if job.Outcome == Failure && !job.NonBlocking {
			report.Outcome = Failure
		}
	}

	slog.Info("run finished", "pipeline", r.Pipeline.Name, "outcome", report.Outcome.String())
	return report, nil
}

func (r *Runner) matchJobs(event Event) []*api.Job {
	var matched []*api.Job
	for i := range r.Pipeline.Jobs {
		job := &r.Pipeline.Jobs[i]
		if jobMatches(r.Pipeline.On, job, event) {
			matched = append(matched, job)
		}
	}
	return matched
}

// preflight expands every matched job's matrix and parses every template
// before anything runs, so definition errors abort the whole run with no
// step executed.
func (r *Runner) preflight(jobs []*api.Job) (map[string][]*matrix.Instance, error) {
	if err := checkTemplates(r.Pipeline); err != nil {
		return nil, err
	}

	expansions := make(map[string][]*matrix.Instance, len(jobs))
	for _, job := range jobs {
		instances, err := matrix.Expand(job.Matrix)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", job.Name, err)
		}
		expansions[job.Name] = instances
	}
	return expansions, nil
}

func (r *Runner) runJobs(ctx context.Context, jobs []*api.Job, expansions map[string][]*matrix.Instance) []JobResult {
	sched := &Scheduler{Invoker: r.Invoker, DefaultMaxParallel: r.MaxParallel}
	results := make([]JobResult, len(jobs))

	var g errgroup.Group
	if r.MaxParallelJobs > 0 {
		g.SetLimit(r.MaxParallelJobs)
	}

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = sched.RunJob(ctx, job, expansions[job.Name], r.Pipeline.Env)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// jobMatches applies the job's trigger filters, falling back to the
// pipeline-level filters when the job declares none. No filters at all
// means every event matches. Patterns are validated at load time, so
// match errors cannot occur here.
func jobMatches(pipelineOn *api.Triggers, job *api.Job, event Event) bool {
	triggers := job.On
	if triggers == nil {
		triggers = pipelineOn
	}
	if triggers == nil {
		return true
	}

	var filter *api.BranchFilter
	switch event.Type {
	case api.EventPush:
		filter = triggers.Push
	case api.EventPullRequest:
		filter = triggers.PullRequest
	}
	if filter == nil {
		return false
	}

	if len(filter.Branches) == 0 {
		return true
	}
	for _, pattern := range filter.Branches {
		if ok, _ := doublestar.Match(pattern, event.Branch); ok {
			return true
		}
	}
	return false
}
