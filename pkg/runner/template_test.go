package runner

import (
	"strings"
	"testing"

	"github.com/systemstart/matrixci/pkg/api"
)

func testScope() scope {
	return newScope(
		"test",
		map[string]string{"rust": "stable", "test_all": "--all"},
		map[string]string{"CARGO_TERM_COLOR": "always"},
		map[string]string{"checkout": "success"},
		false,
	)
}

func TestRenderParams(t *testing.T) {
	params := map[string]string{
		"command": "cargo test {{ .matrix.test_all }}",
		"color":   "{{ .env.CARGO_TERM_COLOR }}",
		"plain":   "no templates here",
	}

	out, err := renderParams("test", params, testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["command"] != "cargo test --all" {
		t.Errorf("matrix substitution failed: %q", out["command"])
	}
	if out["color"] != "always" {
		t.Errorf("env substitution failed: %q", out["color"])
	}
	if out["plain"] != "no templates here" {
		t.Errorf("plain value altered: %q", out["plain"])
	}
}

func TestRenderParams_MissingReference(t *testing.T) {
	params := map[string]string{"command": "{{ .matrix.nonexistent }}"}

	_, err := renderParams("test", params, testScope())
	if err == nil {
		t.Fatal("expected error for missing reference")
	}
	if !api.IsConfigError(err) {
		t.Errorf("expected ConfigError, got %T: %v", err, err)
	}
}

func TestRender_SprigFunctions(t *testing.T) {
	out, err := render("t", `{{ .matrix.rust | upper }}`, testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "STABLE" {
		t.Errorf("expected STABLE, got %q", out)
	}
}

func TestEvalCondition(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    bool
		wantErr bool
	}{
		{"empty is true", "", true, false},
		{"literal true", "true", true, false},
		{"literal false", "false", false, false},
		{"matrix equality", `{{ eq .matrix.rust "stable" }}`, true, false},
		{"matrix inequality", `{{ ne .matrix.rust "stable" }}`, false, false},
		{"prior step outcome", `{{ eq .steps.checkout "success" }}`, true, false},
		{"failed flag", "{{ .failed }}", false, false},
		{"whitespace tolerated", "  true\n", true, false},
		{"non-boolean result", "{{ .matrix.rust }}", false, true},
		{"missing reference", "{{ .matrix.bogus }}", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalCondition("step", tt.expr, testScope())
			if (err != nil) != tt.wantErr {
				t.Fatalf("evalCondition(%q) error = %v, wantErr = %v", tt.expr, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("evalCondition(%q) = %v, want %v", tt.expr, got, tt.want)
			}
			if err != nil && !api.IsConfigError(err) {
				t.Errorf("expected ConfigError, got %T: %v", err, err)
			}
		})
	}
}

func TestCheckTemplates(t *testing.T) {
	p := &api.Pipeline{
		Jobs: []api.Job{{
			Name: "test",
			Steps: []api.StepConfig{{
				Name:   "bad",
				Action: "run",
				Params: map[string]string{"command": "{{ .matrix.rust"},
			}},
		}},
	}

	err := checkTemplates(p)
	if err == nil {
		t.Fatal("expected error for malformed template")
	}
	if !api.IsConfigError(err) {
		t.Errorf("expected ConfigError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), `job "test"`) {
		t.Errorf("error should name the job: %v", err)
	}
}

func TestMergeEnv(t *testing.T) {
	merged := mergeEnv(
		map[string]string{"A": "1", "B": "1"},
		map[string]string{"B": "2", "C": "2"},
		nil,
	)

	if merged["A"] != "1" || merged["B"] != "2" || merged["C"] != "2" {
		t.Errorf("unexpected merge result: %v", merged)
	}
}
