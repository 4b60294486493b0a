package matrix

import (
	"maps"
	"slices"
	"strings"
)

// Instance is one concrete, fully axis-resolved variant of a job: a
// mapping from axis name to a single value. Axis order follows the order
// in which axes were assigned during expansion. Instances are treated as
// immutable once expansion has finished.
type Instance struct {
	axes   []string
	values map[string]string
}

func newInstance() *Instance {
	return &Instance{values: make(map[string]string)}
}

func (in *Instance) set(axis, value string) {
	if _, exists := in.values[axis]; !exists {
		in.axes = append(in.axes, axis)
	}
	in.values[axis] = value
}

// Value returns the value of one axis.
func (in *Instance) Value(axis string) (string, bool) {
	v, ok := in.values[axis]
	return v, ok
}

// Axes returns the axis names in assignment order.
func (in *Instance) Axes() []string {
	return slices.Clone(in.axes)
}

// Values returns a copy of the axis-value mapping.
func (in *Instance) Values() map[string]string {
	out := make(map[string]string, len(in.values))
	maps.Copy(out, in.values)
	return out
}

// ID identifies the instance by its axis-value tuple, e.g.
// "rust=stable, test_all=--all". An unparameterized instance is "default".
func (in *Instance) ID() string {
	if len(in.axes) == 0 {
		return "default"
	}

	var b strings.Builder
	for i, axis := range in.axes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(axis)
		b.WriteByte('=')
		b.WriteString(in.values[axis])
	}
	return b.String()
}
