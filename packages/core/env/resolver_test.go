package env

import (
	"fmt"
	"strings"
	"testing"
)

func TestResolverResolve(t *testing.T) {
	t.Setenv("WEBSVC_TEST_TOKEN", "s3cr3t")

	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  string
	}{
		{
			name:     "no variables",
			input:    "application/json",
			expected: "application/json",
		},
		{
			name:      "simple variable",
			input:     "{{tenant}}",
			variables: map[string]any{"tenant": "acme"},
			expected:  "acme",
		},
		{
			name:      "multiple variables",
			input:     "{{scheme}} {{token}}",
			variables: map[string]any{"scheme": "Bearer", "token": 42},
			expected:  "Bearer 42",
		},
		{
			name:     "environment variable",
			input:    "Bearer {{$WEBSVC_TEST_TOKEN}}",
			expected: "Bearer s3cr3t",
		},
		{
			name:     "function call",
			input:    `{{base64("a:b")}}`,
			expected: "YTpi",
		},
		{
			name:     "whitespace inside braces",
			input:    "{{ $WEBSVC_TEST_TOKEN }}",
			expected: "s3cr3t",
		},
		{
			name:     "unresolved stays as-is",
			input:    "hello {{unknown}}",
			expected: "hello {{unknown}}",
		},
		{
			name:     "unset environment variable stays as-is",
			input:    "{{$WEBSVC_TEST_UNSET}}",
			expected: "{{$WEBSVC_TEST_UNSET}}",
		},
		{
			name:     "unknown function stays as-is",
			input:    "{{nope()}}",
			expected: "{{nope()}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			if tt.variables != nil {
				r.SetVariables(tt.variables)
			}

			got := r.Resolve(tt.input)
			if got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolverFunctionsEvaluatedEachTime(t *testing.T) {
	r := NewResolver()
	a := r.Resolve("{{uuid()}}")
	b := r.Resolve("{{uuid()}}")
	if a == b || strings.Contains(a, "{{") {
		t.Errorf("uuid() should yield a fresh value per resolution, got %q and %q", a, b)
	}
}

func TestResolverWarns(t *testing.T) {
	var warnings []string
	r := NewResolver()
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{missing}} {{$WEBSVC_TEST_UNSET}}")

	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(warnings), warnings)
	}
	if warnings[0] != "unresolved variable: missing" {
		t.Errorf("warnings[0] = %q", warnings[0])
	}
}

func TestResolverResolveAll(t *testing.T) {
	r := NewResolver()
	r.SetVariable("v", "1")

	in := map[string]string{"X-A": "{{v}}", "X-B": "plain"}
	got := r.ResolveAll(in)

	if got["X-A"] != "1" || got["X-B"] != "plain" {
		t.Errorf("ResolveAll() = %v", got)
	}
	if in["X-A"] != "{{v}}" {
		t.Error("ResolveAll() mutated its input")
	}
}

func TestResolverGetUnresolvedVariables(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  []string
	}{
		{
			name:     "no variables",
			input:    "hello world",
			expected: nil,
		},
		{
			name:      "resolved variable",
			input:     "{{foo}}",
			variables: map[string]any{"foo": "bar"},
			expected:  nil,
		},
		{
			name:     "multiple unresolved variables",
			input:    "{{foo}} and {{bar}}",
			expected: []string{"foo", "bar"},
		},
		{
			name:      "mixed resolved and unresolved",
			input:     "{{foo}} and {{bar}} and {{baz}}",
			variables: map[string]any{"bar": "middle"},
			expected:  []string{"foo", "baz"},
		},
		{
			name:     "env and functions are not variables",
			input:    "{{$HOME}} {{uuid()}}",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			if tt.variables != nil {
				r.SetVariables(tt.variables)
			}

			got := r.GetUnresolvedVariables(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("GetUnresolvedVariables(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			for i, v := range tt.expected {
				if got[i] != v {
					t.Errorf("GetUnresolvedVariables(%q)[%d] = %q, want %q", tt.input, i, got[i], v)
				}
			}
			if r.HasUnresolvedVariables(tt.input) != (len(tt.expected) > 0) {
				t.Errorf("HasUnresolvedVariables(%q) disagrees with GetUnresolvedVariables", tt.input)
			}
		})
	}
}

func TestHasTemplate(t *testing.T) {
	if !HasTemplate("Bearer {{$TOKEN}}") {
		t.Error("HasTemplate() = false for templated value")
	}
	if HasTemplate("Bearer abc") {
		t.Error("HasTemplate() = true for plain value")
	}
}

func TestResolverClone(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", "1")
	clone := r.Clone()
	clone.SetVariable("a", "2")

	if v, _ := r.GetVariable("a"); v != "1" {
		t.Errorf("original changed to %v", v)
	}
}
