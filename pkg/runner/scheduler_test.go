package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/systemstart/matrixci/pkg/api"
	"github.com/systemstart/matrixci/pkg/matrix"
)

func expand(t *testing.T, cfg *api.MatrixConfig) []*matrix.Instance {
	t.Helper()
	instances, err := matrix.Expand(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return instances
}

func TestScheduler_RunJob(t *testing.T) {
	inv := &recordingInvoker{}
	sched := &Scheduler{Invoker: inv}

	job := &api.Job{
		Name:   "test",
		Matrix: &api.MatrixConfig{Axes: []api.Axis{{Name: "rust", Values: []string{"stable", "beta", "nightly"}}}},
		Steps:  []api.StepConfig{step("build")},
	}

	result := sched.RunJob(context.Background(), job, expand(t, job.Matrix), nil)
	if result.Outcome != Success {
		t.Fatalf("expected Success, got %s", result.Outcome)
	}
	if len(result.Instances) != 3 {
		t.Fatalf("expected 3 instance results, got %d", len(result.Instances))
	}
	for _, inst := range result.Instances {
		if inst.Outcome != Success {
			t.Errorf("instance %s: expected Success, got %s", inst.ID, inst.Outcome)
		}
	}
}

func TestScheduler_InstanceFailureDoesNotAbortSiblings(t *testing.T) {
	var invoked atomic.Int32
	inv := invokerFunc(func(_ context.Context, _ string, params map[string]string) error {
		invoked.Add(1)
		if params["command"] == "beta" {
			return errors.New("boom")
		}
		return nil
	})
	sched := &Scheduler{Invoker: inv, DefaultMaxParallel: 1}

	job := &api.Job{
		Name:   "test",
		Matrix: &api.MatrixConfig{Axes: []api.Axis{{Name: "rust", Values: []string{"stable", "beta", "nightly"}}}},
		Steps: []api.StepConfig{{
			Name:   "build",
			Action: "run",
			Params: map[string]string{"command": "{{ .matrix.rust }}"},
		}},
	}

	result := sched.RunJob(context.Background(), job, expand(t, job.Matrix), nil)
	if result.Outcome != Failure {
		t.Fatalf("expected Failure, got %s", result.Outcome)
	}
	if invoked.Load() != 3 {
		t.Errorf("all siblings must run despite one failing, got %d invocations", invoked.Load())
	}

	byID := make(map[string]Outcome)
	for _, inst := range result.Instances {
		byID[inst.ID] = inst.Outcome
	}
	if byID["rust=beta"] != Failure {
		t.Errorf("expected rust=beta Failure, got %s", byID["rust=beta"])
	}
	if byID["rust=stable"] != Success || byID["rust=nightly"] != Success {
		t.Errorf("siblings must succeed: %v", byID)
	}
}

func TestScheduler_ContinueOnErrorIsNonBlocking(t *testing.T) {
	inv := &recordingInvoker{fail: map[string]bool{"build": true}}
	sched := &Scheduler{Invoker: inv}

	job := &api.Job{
		Name:            "lint",
		ContinueOnError: true,
		Steps:           []api.StepConfig{step("build")},
	}

	result := sched.RunJob(context.Background(), job, expand(t, nil), nil)
	if result.Outcome != Failure {
		t.Fatalf("failure must still be recorded, got %s", result.Outcome)
	}
	if !result.NonBlocking {
		t.Error("continue-on-error failure must be flagged non-blocking")
	}
}

func TestScheduler_MaxParallelBound(t *testing.T) {
	var mu sync.Mutex
	var current, peak int

	inv := invokerFunc(func(context.Context, string, map[string]string) error {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()
		return nil
	})

	job := &api.Job{
		Name:        "test",
		MaxParallel: 2,
		Matrix:      &api.MatrixConfig{Axes: []api.Axis{{Name: "n", Values: []string{"1", "2", "3", "4", "5", "6"}}}},
		Steps:       []api.StepConfig{{Name: "wait", Action: "run"}},
	}

	sched := &Scheduler{Invoker: inv}
	result := sched.RunJob(context.Background(), job, expand(t, job.Matrix), nil)
	if result.Outcome != Success {
		t.Fatalf("expected Success, got %s", result.Outcome)
	}
	if peak > 2 {
		t.Errorf("max-parallel 2 exceeded: peak %d", peak)
	}
}

func TestScheduler_CancelledInstancesReportSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := &recordingInvoker{}
	sched := &Scheduler{Invoker: inv}

	job := &api.Job{
		Name:   "test",
		Matrix: &api.MatrixConfig{Axes: []api.Axis{{Name: "rust", Values: []string{"stable", "beta"}}}},
		Steps:  []api.StepConfig{step("build")},
	}

	result := sched.RunJob(ctx, job, expand(t, job.Matrix), nil)
	if result.Outcome != Success {
		t.Fatalf("cancellation must not count as failure, got %s", result.Outcome)
	}
	for _, inst := range result.Instances {
		if inst.Outcome != Skipped {
			t.Errorf("instance %s: expected Skipped, got %s", inst.ID, inst.Outcome)
		}
	}
}
