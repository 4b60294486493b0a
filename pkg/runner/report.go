package runner

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// RunReport is the final accounting of one pipeline run: every attempted
// instance and its outcome, plus the overall status. When a run is
// aborted by a configuration error, Jobs is empty and ConfigError holds
// the message.
type RunReport struct {
	Pipeline    string      `yaml:"pipeline"`
	Event       Event       `yaml:"event"`
	Outcome     Outcome     `yaml:"outcome"`
	ConfigError string      `yaml:"config-error,omitempty"`
	Jobs        []JobResult `yaml:"jobs"`
}

// WriteText renders a human-readable summary.
func (r *RunReport) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "pipeline %s: %s (%s on %s)\n", r.Pipeline, r.Outcome, r.Event.Type, r.Event.Branch); err != nil {
		return err
	}
	if r.ConfigError != "" {
		_, err := fmt.Fprintf(w, "  configuration error: %s\n", r.ConfigError)
		return err
	}

	for _, job := range r.Jobs {
		suffix := ""
		if job.NonBlocking {
			suffix = " (continue-on-error, non-blocking)"
		}
		if _, err := fmt.Fprintf(w, "  job %s: %s%s\n", job.Name, job.Outcome, suffix); err != nil {
			return err
		}
		for _, inst := range job.Instances {
			if _, err := fmt.Fprintf(w, "    [%s]: %s\n", inst.ID, inst.Outcome); err != nil {
				return err
			}
			for _, step := range inst.Steps {
				line := fmt.Sprintf("      %s: %s", step.Name, step.Outcome)
				if step.Message != "" {
					line += " (" + step.Message + ")"
				}
				if _, err := fmt.Fprintln(w, line); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// WriteYAML exports the report as structured data.
func (r *RunReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing report encoder: %w", err)
	}
	return nil
}
