// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apikcloud/oops/internal/reconcile"

	"github.com/charmbracelet/huh"
)

// ErrInterrupted is returned when the user quits the review. It stops the
// acceptance step; nothing is applied.
var ErrInterrupted = errors.New("review interrupted")

// Choice is an answer to the review prompt.
type Choice string

const (
	ChoiceYes  Choice = "yes"
	ChoiceNo   Choice = "no"
	ChoiceEdit Choice = "edit"
	// ChoiceAll accepts this item and every following one without asking.
	ChoiceAll  Choice = "all"
	ChoiceQuit Choice = "quit"
)

type (
	// Asker runs the two questions of a review. It exists so the decision
	// logic can be exercised without a terminal.
	Asker interface {
		Choose(ctx context.Context, item reconcile.Item, choices []Choice) (Choice, error)
		Edit(ctx context.Context, item reconcile.Item) (string, error)
	}

	// Prompter asks the user about each planned item. It implements
	// reconcile.Decider.
	Prompter struct {
		asker     Asker
		acceptAll bool
	}

	formAsker struct {
		cfg Config
	}
)

// NewPrompter returns a Prompter that renders huh forms with cfg.
func NewPrompter(cfg Config) *Prompter {
	return &Prompter{asker: formAsker{cfg: cfg}}
}

// NewPrompterWithAsker returns a Prompter driven by asker.
func NewPrompterWithAsker(asker Asker) *Prompter {
	return &Prompter{asker: asker}
}

// Decide implements reconcile.Decider.
func (p *Prompter) Decide(ctx context.Context, item reconcile.Item) (reconcile.Item, error) {
	if p.acceptAll {
		return item, nil
	}

	choices := []Choice{ChoiceYes, ChoiceNo}
	if item.Action != reconcile.ActionPrune {
		choices = append(choices, ChoiceEdit)
	}
	choices = append(choices, ChoiceAll, ChoiceQuit)

	choice, err := p.asker.Choose(ctx, item, choices)
	if err != nil {
		return reconcile.Item{}, interrupted(err)
	}

	switch choice {
	case ChoiceYes:
		return item, nil
	case ChoiceAll:
		p.acceptAll = true
		return item, nil
	case ChoiceNo:
		return reconcile.Item{}, reconcile.ErrUserAborted
	case ChoiceEdit:
		value, err := p.asker.Edit(ctx, item)
		if err != nil {
			return reconcile.Item{}, interrupted(err)
		}
		item.New = strings.TrimSpace(value)
		return item, nil
	default:
		return reconcile.Item{}, ErrInterrupted
	}
}

func interrupted(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrInterrupted
	}
	return err
}

// Title describes item as a question.
func Title(item reconcile.Item) string {
	switch item.Action {
	case reconcile.ActionPrune:
		return fmt.Sprintf("Remove unused submodule %s (%s)?", item.Submodule, item.Old)
	case reconcile.ActionRewritePath:
		return fmt.Sprintf("Move %s from %s to %s?", item.Submodule, item.Old, item.New)
	case reconcile.ActionFixBranch:
		return fmt.Sprintf("Track branch %s for %s?", item.New, item.Submodule)
	case reconcile.ActionRename:
		return fmt.Sprintf("Rename submodule %s to %s?", item.Old, item.New)
	default:
		return item.String() + "?"
	}
}

func choiceLabel(c Choice) string {
	switch c {
	case ChoiceYes:
		return "Yes"
	case ChoiceNo:
		return "No, skip it"
	case ChoiceEdit:
		return "Edit the new value"
	case ChoiceAll:
		return "Yes to all remaining"
	default:
		return "Quit without applying"
	}
}

func (a formAsker) Choose(ctx context.Context, item reconcile.Item, choices []Choice) (Choice, error) {
	opts := make([]huh.Option[Choice], len(choices))
	for i, c := range choices {
		opts[i] = huh.NewOption(choiceLabel(c), c)
	}
	choice := ChoiceYes
	sel := huh.NewSelect[Choice]().
		Title(Title(item)).
		Description(string(item.Action)).
		Options(opts...).
		Value(&choice)
	if err := a.cfg.form(huh.NewGroup(sel)).RunWithContext(ctx); err != nil {
		return "", err
	}
	return choice, nil
}

func (a formAsker) Edit(ctx context.Context, item reconcile.Item) (string, error) {
	value := item.New
	in := huh.NewInput().
		Title(fmt.Sprintf("New value for %s", item.Submodule)).
		Description("Leave empty to skip this change.").
		Value(&value)
	if err := a.cfg.form(huh.NewGroup(in)).RunWithContext(ctx); err != nil {
		return "", err
	}
	return value, nil
}
