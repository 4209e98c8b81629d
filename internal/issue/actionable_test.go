// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "load submodule declarations"}, "failed to load submodule declarations"},
		{"with resource", &ActionableError{Operation: "rename submodule", Resource: "OCA/web"}, "failed to rename submodule: OCA/web"},
		{"with cause", &ActionableError{Operation: "stage changes", Cause: errors.New("index.lock exists")}, "failed to stage changes: index.lock exists"},
		{
			"full",
			&ActionableError{Operation: "move submodule", Resource: "third-party/web", Cause: errors.New("path exists")},
			"failed to move submodule: third-party/web: path exists",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_ErrorsIs(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	err := fmt.Errorf("outer: %w", NewErrorContext().WithOperation("x").Wrap(sentinel).BuildError())
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the wrapped cause")
	}
	ae, ok := Lookup(err)
	if !ok || ae.Operation != "x" {
		t.Errorf("Lookup() = %+v, %v", ae, ok)
	}
	if _, ok := Lookup(sentinel); ok {
		t.Error("Lookup() found an ActionableError in a plain error")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().
		WithOperation("load configuration").
		WithResource("oops.cue").
		WithSuggestion("Check the CUE syntax").
		WithSuggestion("Run 'oops config show'").
		Wrap(fmt.Errorf("decode: %w", errors.New("unexpected token"))).
		Build()

	short := err.Format(false)
	for _, want := range []string{"failed to load configuration: oops.cue", "  • Check the CUE syntax", "  • Run 'oops config show'"} {
		if !strings.Contains(short, want) {
			t.Errorf("Format(false) = %q, missing %q", short, want)
		}
	}
	if strings.Contains(short, "Error chain") {
		t.Error("Format(false) should not include the error chain")
	}

	long := err.Format(true)
	for _, want := range []string{"Error chain:", "1. decode: unexpected token", "2. unexpected token"} {
		if !strings.Contains(long, want) {
			t.Errorf("Format(true) = %q, missing %q", long, want)
		}
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if got := NewErrorContext().WithResource("x").Build(); got != nil {
		t.Errorf("Build() without operation = %+v, want nil", got)
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}

	ae := NewErrorContext().WithOperation("prune").WithIssue(SubmoduleCollisionId).Build()
	if ae.Issue != SubmoduleCollisionId {
		t.Errorf("Issue = %d, want %d", ae.Issue, SubmoduleCollisionId)
	}
}

func TestWrapWithOperation(t *testing.T) {
	t.Parallel()

	if WrapWithOperation(nil, "x") != nil {
		t.Error("WrapWithOperation(nil) should be nil")
	}
	cause := errors.New("boom")
	err := WrapWithOperation(cause, "commit")
	if err.Error() != "failed to commit: boom" || !errors.Is(err, cause) {
		t.Errorf("WrapWithOperation() = %v", err)
	}
}
