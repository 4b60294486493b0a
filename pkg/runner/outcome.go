package runner

// Outcome is the terminal state of a step, instance, job, or run.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalYAML renders outcomes as their names in exported reports.
func (o Outcome) MarshalYAML() (any, error) {
	return o.String(), nil
}
