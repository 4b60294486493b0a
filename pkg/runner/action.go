package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/systemstart/matrixci/pkg/api"
)

// ActionInvoker runs one external step: checkout, toolchain install, a
// shell command. The core treats the action body as opaque; a nil error
// is success, anything else is the step's failure.
type ActionInvoker interface {
	Invoke(ctx context.Context, name string, params map[string]string) error
}

// ActionFunc is the body of one named action.
type ActionFunc func(ctx context.Context, params map[string]string) error

// Registry dispatches invocations to registered actions by name.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]ActionFunc
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]ActionFunc)}
}

// Register adds or replaces an action.
func (r *Registry) Register(name string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

// Invoke runs the named action. Referencing an unregistered action is
// the invoking step's failure.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]string) error {
	r.mu.RLock()
	fn, ok := r.actions[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown action %q", name)
	}
	return fn(ctx, params)
}

// ShellAction returns the built-in "run" action: it executes
// params["command"] through sh -c, optionally in params["dir"], with env
// appended to the process environment.
func ShellAction(env map[string]string) ActionFunc {
	return func(ctx context.Context, params map[string]string) error {
		command := params["command"]
		if command == "" {
			return fmt.Errorf("%s action: command param is required", api.ActionRun)
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = params["dir"]
		cmd.Env = os.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		slog.Info("running command", "command", command)

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("command failed: %w\nstderr: %s", err, stderr.String())
		}
		return nil
	}
}

// NoopAction returns an action that logs and succeeds. Useful for steps
// whose effect lives outside the runner, like checkout in local runs.
func NoopAction() ActionFunc {
	return func(_ context.Context, params map[string]string) error {
		slog.Debug("no-op action invoked", "params", params)
		return nil
	}
}
