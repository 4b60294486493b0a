// Package matrix expands a job's matrix configuration into the concrete
// job instances a scheduler runs.
package matrix

import (
	"github.com/systemstart/matrixci/pkg/api"
)

// Expand produces the ordered job instances for a matrix configuration:
// the Cartesian product of the base axes in declaration order, then the
// include entries applied in declaration order. Expansion is
// deterministic; expanding the same configuration twice yields identical
// results.
//
// An include entry that agrees with existing instances on the base axes
// it specifies merges its remaining values into every such instance
// (broadcast). An entry that names base axes but matches no instance is
// appended as a standalone instance. An entry naming no base axis at all
// merges into every instance. Merging may add new axes but must not
// change a value already set on an instance; that is a ConfigError.
//
// A nil or empty configuration yields exactly one unparameterized
// instance: the job runs once.
func Expand(cfg *api.MatrixConfig) ([]*Instance, error) {
	if cfg == nil {
		return []*Instance{newInstance()}, nil
	}

	// Axes with zero declared values are absent, not an empty product.
	axes := make([]api.Axis, 0, len(cfg.Axes))
	for _, axis := range cfg.Axes {
		if len(axis.Values) > 0 {
			axes = append(axes, axis)
		}
	}

	instances := cartesian(axes)

	axisNames := make(map[string]bool, len(axes))
	for _, axis := range axes {
		axisNames[axis.Name] = true
	}

	for _, entry := range cfg.Include {
		var err error
		instances, err = applyInclude(instances, entry, axisNames)
		if err != nil {
			return nil, err
		}
	}

	return instances, nil
}

// cartesian builds the row-major product: the first declared axis varies
// slowest. Zero axes yield the single empty instance.
func cartesian(axes []api.Axis) []*Instance {
	instances := []*Instance{newInstance()}

	for _, axis := range axes {
		next := make([]*Instance, 0, len(instances)*len(axis.Values))
		for _, inst := range instances {
			for _, value := range axis.Values {
				child := newInstance()
				for _, a := range inst.axes {
					child.set(a, inst.values[a])
				}
				child.set(axis.Name, value)
				next = append(next, child)
			}
		}
		instances = next
	}

	return instances
}

func applyInclude(instances []*Instance, entry api.IncludeEntry, axisNames map[string]bool) ([]*Instance, error) {
	var matchKeys []string
	for _, key := range entry.Keys {
		if axisNames[key] {
			matchKeys = append(matchKeys, key)
		}
	}

	var matched []*Instance
	for _, inst := range instances {
		if agreesOn(inst, entry, matchKeys) {
			matched = append(matched, inst)
		}
	}

	if len(matched) == 0 {
		standalone := newInstance()
		for _, key := range entry.Keys {
			standalone.set(key, entry.Values[key])
		}
		return append(instances, standalone), nil
	}

	for _, inst := range matched {
		if err := mergeEntry(inst, entry); err != nil {
			return nil, err
		}
	}
	return instances, nil
}

// agreesOn reports whether the instance carries every given key with the
// entry's value. With no keys the entry applies to every instance.
func agreesOn(inst *Instance, entry api.IncludeEntry, keys []string) bool {
	for _, key := range keys {
		have, ok := inst.values[key]
		if !ok || have != entry.Values[key] {
			return false
		}
	}
	return true
}

func mergeEntry(inst *Instance, entry api.IncludeEntry) error {
	for _, key := range entry.Keys {
		want := entry.Values[key]
		if have, ok := inst.values[key]; ok {
			if have != want {
				return api.Configf("matrix include: cannot redefine %q from %q to %q on instance %s",
					key, have, want, inst.ID())
			}
			continue
		}
		inst.set(key, want)
	}
	return nil
}
