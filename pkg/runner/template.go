package runner

import (
	"bytes"
	"maps"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/systemstart/matrixci/pkg/api"
)

// scope is the data visible to step templates: .matrix (instance axis
// values), .env (merged environment), .job (job name), .steps (prior
// step outcomes by name), .failed (whether a prior step failed).
type scope map[string]any

func newScope(job string, matrixValues, env map[string]string, steps map[string]string, failed bool) scope {
	return scope{
		"matrix": matrixValues,
		"env":    env,
		"job":    job,
		"steps":  steps,
		"failed": failed,
	}
}

// render evaluates one template body against the scope. A syntax error
// or an unresolved reference is a ConfigError.
func render(name, text string, data scope) (string, error) {
	tmpl, err := parseTemplate(name, text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any(data)); err != nil {
		return "", api.Configf("template %s: unresolved reference: %v", name, err)
	}
	return buf.String(), nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(sprig.FuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, api.Configf("template %s: %v", name, err)
	}
	return tmpl, nil
}

// renderParams substitutes the scope into every parameter value.
func renderParams(stepName string, params map[string]string, data scope) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for key, value := range params {
		rendered, err := render(stepName+"."+key, value, data)
		if err != nil {
			return nil, err
		}
		out[key] = rendered
	}
	return out, nil
}

// evalCondition renders a step's if expression and interprets the result
// as a boolean. An empty expression is true.
func evalCondition(stepName, expr string, data scope) (bool, error) {
	if expr == "" {
		return true, nil
	}

	rendered, err := render(stepName+".if", expr, data)
	if err != nil {
		return false, err
	}

	ok, err := strconv.ParseBool(strings.TrimSpace(rendered))
	if err != nil {
		return false, api.Configf("step %q: condition %q evaluated to %q, want a boolean", stepName, expr, rendered)
	}
	return ok, nil
}

// checkTemplates parses every template in the definition without
// executing it, so syntax errors abort a run before any job starts.
func checkTemplates(p *api.Pipeline) error {
	for _, job := range p.Jobs {
		for _, step := range job.Steps {
			if _, err := parseTemplate(step.Name+".if", step.If); err != nil {
				return api.Configf("job %q: %v", job.Name, err)
			}
			for key, value := range step.Params {
				if _, err := parseTemplate(step.Name+"."+key, value); err != nil {
					return api.Configf("job %q: %v", job.Name, err)
				}
			}
			for key, value := range step.Env {
				if _, err := parseTemplate(step.Name+".env."+key, value); err != nil {
					return api.Configf("job %q: %v", job.Name, err)
				}
			}
		}
	}
	return nil
}

// mergeEnv overlays maps left to right; later maps win.
func mergeEnv(envs ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, env := range envs {
		maps.Copy(merged, env)
	}
	return merged
}
