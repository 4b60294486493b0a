package api

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate checks the pipeline definition for errors.
func (p *Pipeline) Validate() error {
	if len(p.Jobs) == 0 {
		return fmt.Errorf("pipeline has no jobs")
	}

	if err := p.On.validate(); err != nil {
		return fmt.Errorf("triggers: %w", err)
	}

	names := make(map[string]int)
	for i, job := range p.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job %d: name is required", i)
		}
		if prev, exists := names[job.Name]; exists {
			return fmt.Errorf("job %d: duplicate job name %q (first defined at job %d)", i, job.Name, prev)
		}
		names[job.Name] = i

		if err := job.validate(); err != nil {
			return fmt.Errorf("job %q: %w", job.Name, err)
		}
	}

	return nil
}

func (j *Job) validate() error {
	if len(j.Steps) == 0 {
		return fmt.Errorf("job has no steps")
	}
	if err := j.On.validate(); err != nil {
		return fmt.Errorf("triggers: %w", err)
	}
	if j.MaxParallel < 0 {
		return fmt.Errorf("max-parallel must not be negative")
	}

	if j.Matrix != nil {
		if err := j.Matrix.validate(); err != nil {
			return fmt.Errorf("matrix: %w", err)
		}
	}

	names := make(map[string]int)
	for i, step := range j.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if prev, exists := names[step.Name]; exists {
			return fmt.Errorf("step %d: duplicate step name %q (first defined at step %d)", i, step.Name, prev)
		}
		names[step.Name] = i

		if step.Action == "" {
			return fmt.Errorf("step %q: action is required", step.Name)
		}
	}

	return nil
}

// validate checks branch patterns so trigger matching at run time cannot
// hit a malformed glob. A nil receiver (no triggers declared) is valid.
func (t *Triggers) validate() error {
	if t == nil {
		return nil
	}
	for _, filter := range []*BranchFilter{t.Push, t.PullRequest} {
		if filter == nil {
			continue
		}
		for _, pattern := range filter.Branches {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("invalid branch pattern %q", pattern)
			}
		}
	}
	return nil
}

func (m *MatrixConfig) validate() error {
	seen := make(map[string]bool, len(m.Axes))
	for _, axis := range m.Axes {
		if axis.Name == "" {
			return fmt.Errorf("axis name is required")
		}
		if seen[axis.Name] {
			return fmt.Errorf("duplicate axis %q", axis.Name)
		}
		seen[axis.Name] = true
	}

	for i, entry := range m.Include {
		if len(entry.Keys) == 0 {
			return fmt.Errorf("include entry %d is empty", i)
		}
	}

	return nil
}
