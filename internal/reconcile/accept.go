// SPDX-License-Identifier: MPL-2.0

package reconcile

import (
	"context"
	"errors"
)

// ErrUserAborted is returned by a Decider that rejects an item. Accept
// treats it as "skip this item"; any other error stops the acceptance step.
var ErrUserAborted = errors.New("change rejected")

type (
	// Decider chooses whether a planned item is applied. It may return an
	// edited copy of the item (typically with a different New value).
	Decider interface {
		Decide(ctx context.Context, item Item) (Item, error)
	}

	// DeciderFunc adapts a function to the Decider interface.
	DeciderFunc func(ctx context.Context, item Item) (Item, error)
)

var (
	// AcceptAll applies every item unchanged.
	AcceptAll Decider = DeciderFunc(func(_ context.Context, item Item) (Item, error) { return item, nil })

	// RejectAll applies nothing.
	RejectAll Decider = DeciderFunc(func(context.Context, Item) (Item, error) { return Item{}, ErrUserAborted })
)

// Decide calls f.
func (f DeciderFunc) Decide(ctx context.Context, item Item) (Item, error) { return f(ctx, item) }

// Accept asks decider about every item in order and splits them into
// accepted (possibly edited) and rejected items. An edit that clears New is
// counted as a rejection.
func Accept(ctx context.Context, items []Item, decider Decider) (accepted, rejected []Item, err error) {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return accepted, rejected, err
		}
		decided, err := decider.Decide(ctx, item)
		switch {
		case errors.Is(err, ErrUserAborted):
			rejected = append(rejected, item)
		case err != nil:
			return accepted, rejected, err
		case item.Action != ActionPrune && decided.New == "":
			rejected = append(rejected, item)
		default:
			decided.Submodule, decided.Action, decided.Old = item.Submodule, item.Action, item.Old
			accepted = append(accepted, decided)
		}
	}
	return accepted, rejected, nil
}
