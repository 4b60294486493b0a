package api

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	EventPush        = "push"
	EventPullRequest = "pull_request"

	// ActionRun is the built-in shell action name.
	ActionRun = "run"
)

// Pipeline is the pipeline definition format. It is loaded once per run
// and is immutable for the run's duration.
type Pipeline struct {
	Name string            `yaml:"name"`
	On   *Triggers         `yaml:"on"`
	Env  map[string]string `yaml:"env"`
	Jobs []Job             `yaml:"jobs"`

	// Set by the loader, not from YAML.
	FilePath string `yaml:"-"`
}

// Triggers restricts which events start a run. A nil filter for an event
// type means that event type never matches; a nil Triggers means no
// restriction at all.
type Triggers struct {
	Push        *BranchFilter `yaml:"push"`
	PullRequest *BranchFilter `yaml:"pull_request"`
}

// BranchFilter lists branch patterns (doublestar globs). An empty list
// matches every branch.
type BranchFilter struct {
	Branches []string `yaml:"branches"`
}

// Job is a named unit of work, parameterized by a matrix.
type Job struct {
	Name            string            `yaml:"name"`
	On              *Triggers         `yaml:"on"` // overrides the pipeline-level triggers when set
	Matrix          *MatrixConfig     `yaml:"matrix"`
	Env             map[string]string `yaml:"env"`
	ContinueOnError bool              `yaml:"continue-on-error"`
	MaxParallel     int               `yaml:"max-parallel"` // 0 = unlimited
	Steps           []StepConfig      `yaml:"steps"`
}

// StepConfig defines a single step within a job. Params values, Env
// values and If are template bodies evaluated per job instance.
type StepConfig struct {
	Name   string            `yaml:"name"`
	Action string            `yaml:"action"`
	Params map[string]string `yaml:"params"`
	Env    map[string]string `yaml:"env"`
	If     string            `yaml:"if"`
	Always bool              `yaml:"always"` // run even after a prior step failed
}

// Axis is one named matrix dimension with its ordered values.
type Axis struct {
	Name   string
	Values []string
}

// IncludeEntry is one explicit matrix include: axis name -> value, with
// the declaration order of the keys preserved.
type IncludeEntry struct {
	Keys   []string
	Values map[string]string
}

// MatrixConfig is the matrix block of a job: base axes in declaration
// order plus explicit include entries. "include" is a reserved key; every
// other key declares an axis.
type MatrixConfig struct {
	Axes    []Axis
	Include []IncludeEntry
}

// UnmarshalYAML decodes the matrix mapping while preserving axis
// declaration order, which plain map decoding would lose.
func (m *MatrixConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("matrix must be a mapping, got %s", nodeKind(node))
	}

	for i := 0; i < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]

		if key.Value == "include" {
			if val.Kind != yaml.SequenceNode {
				return fmt.Errorf("matrix include must be a sequence, got %s", nodeKind(val))
			}
			for _, entry := range val.Content {
				var inc IncludeEntry
				if err := entry.Decode(&inc); err != nil {
					return fmt.Errorf("matrix include: %w", err)
				}
				m.Include = append(m.Include, inc)
			}
			continue
		}

		values, err := scalarList(val)
		if err != nil {
			return fmt.Errorf("matrix axis %q: %w", key.Value, err)
		}
		m.Axes = append(m.Axes, Axis{Name: key.Value, Values: values})
	}

	return nil
}

// UnmarshalYAML decodes one include entry, keeping key order.
func (e *IncludeEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("entry must be a mapping, got %s", nodeKind(node))
	}

	e.Values = make(map[string]string, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("key %q: value must be a scalar, got %s", key.Value, nodeKind(val))
		}
		if _, dup := e.Values[key.Value]; dup {
			return fmt.Errorf("key %q: duplicate key", key.Value)
		}
		e.Keys = append(e.Keys, key.Value)
		e.Values[key.Value] = val.Value
	}

	return nil
}

// scalarList accepts either a single scalar or a sequence of scalars and
// returns the raw scalar texts, so 1.37.0 and 4 both come through as
// written rather than as YAML-typed values.
func scalarList(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(node.Content))
		for _, child := range node.Content {
			if child.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("values must be scalars, got %s", nodeKind(child))
			}
			values = append(values, child.Value)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("expected a scalar or a sequence, got %s", nodeKind(node))
	}
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
