// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/apikcloud/oops/internal/reconcile"

	"github.com/charmbracelet/huh"
	"github.com/google/go-cmp/cmp"
)

type scriptedAsker struct {
	choices []Choice
	edits   []string
	err     error
	offered [][]Choice
	asked   []string
}

func (s *scriptedAsker) Choose(_ context.Context, item reconcile.Item, choices []Choice) (Choice, error) {
	s.offered = append(s.offered, choices)
	s.asked = append(s.asked, item.Submodule)
	if s.err != nil {
		return "", s.err
	}
	c := s.choices[0]
	s.choices = s.choices[1:]
	return c, nil
}

func (s *scriptedAsker) Edit(context.Context, reconcile.Item) (string, error) {
	e := s.edits[0]
	s.edits = s.edits[1:]
	return e, nil
}

var reviewItems = []reconcile.Item{
	{Submodule: "a", Action: reconcile.ActionRename, Old: "a", New: "OCA/a"},
	{Submodule: "b", Action: reconcile.ActionRename, Old: "b", New: "OCA/b"},
	{Submodule: "c", Action: reconcile.ActionRename, Old: "c", New: "OCA/c"},
	{Submodule: "d", Action: reconcile.ActionRename, Old: "d", New: "OCA/d"},
}

func TestPrompterDecisions(t *testing.T) {
	t.Parallel()

	asker := &scriptedAsker{
		choices: []Choice{ChoiceYes, ChoiceNo, ChoiceEdit, ChoiceEdit},
		edits:   []string{"  acme/c  ", ""},
	}
	accepted, rejected, err := reconcile.Accept(context.Background(), reviewItems, NewPrompterWithAsker(asker))
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	wantAccepted := []reconcile.Item{reviewItems[0], {Submodule: "c", Action: reconcile.ActionRename, Old: "c", New: "acme/c"}}
	if diff := cmp.Diff(wantAccepted, accepted); diff != "" {
		t.Errorf("accepted (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]reconcile.Item{reviewItems[1], reviewItems[3]}, rejected); diff != "" {
		t.Errorf("rejected (-want +got):\n%s", diff)
	}
}

func TestPrompterAcceptAll(t *testing.T) {
	t.Parallel()

	asker := &scriptedAsker{choices: []Choice{ChoiceNo, ChoiceAll}}
	accepted, _, err := reconcile.Accept(context.Background(), reviewItems, NewPrompterWithAsker(asker))
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 3 {
		t.Errorf("accepted %d items, want 3", len(accepted))
	}
	if diff := cmp.Diff([]string{"a", "b"}, asker.asked); diff != "" {
		t.Errorf("asked (-want +got):\n%s", diff)
	}
}

func TestPrompterQuit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		asker *scriptedAsker
	}{
		{"quit choice", &scriptedAsker{choices: []Choice{ChoiceYes, ChoiceQuit}}},
		{"ctrl-c", &scriptedAsker{err: huh.ErrUserAborted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := reconcile.Accept(context.Background(), reviewItems, NewPrompterWithAsker(tt.asker))
			if !errors.Is(err, ErrInterrupted) {
				t.Errorf("Accept() error = %v, want ErrInterrupted", err)
			}
		})
	}
}

func TestPrompterPruneCannotBeEdited(t *testing.T) {
	t.Parallel()

	asker := &scriptedAsker{choices: []Choice{ChoiceYes, ChoiceYes}}
	items := []reconcile.Item{
		{Submodule: "x", Action: reconcile.ActionPrune, Old: "third-party/x"},
		{Submodule: "y", Action: reconcile.ActionFixBranch, New: "18.0"},
	}
	if _, _, err := reconcile.Accept(context.Background(), items, NewPrompterWithAsker(asker)); err != nil {
		t.Fatal(err)
	}
	if slices.Contains(asker.offered[0], ChoiceEdit) {
		t.Error("prune offered an edit")
	}
	if !slices.Contains(asker.offered[1], ChoiceEdit) {
		t.Error("fix_branch did not offer an edit")
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		item reconcile.Item
		want string
	}{
		{reconcile.Item{Submodule: "x", Action: reconcile.ActionPrune, Old: "p/x"}, "Remove unused submodule x (p/x)?"},
		{reconcile.Item{Submodule: "x", Action: reconcile.ActionRewritePath, Old: "p/x", New: ".third-party/o/x"}, "Move x from p/x to .third-party/o/x?"},
		{reconcile.Item{Submodule: "x", Action: reconcile.ActionFixBranch, New: "18.0"}, "Track branch 18.0 for x?"},
		{reconcile.Item{Submodule: "x", Action: reconcile.ActionRename, Old: "x", New: "o/x"}, "Rename submodule x to o/x?"},
	}
	for _, tt := range tests {
		t.Run(string(tt.item.Action), func(t *testing.T) {
			t.Parallel()
			if got := Title(tt.item); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}
