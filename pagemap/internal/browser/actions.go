package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod/lib/proto"
)

// Click resolves loc and clicks the element's centre with the left button.
func Click(ctx context.Context, t *Tab, loc string) error {
	el, err := Resolve(ctx, t, loc)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %q: %w", loc, err)
	}
	return nil
}

// Fill resolves loc, selects its current content and types value over it.
func Fill(ctx context.Context, t *Tab, loc, value string) error {
	el, err := Resolve(ctx, t, loc)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("browser: fill %q: select: %w", loc, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("browser: fill %q: %w", loc, err)
	}
	return nil
}

// Hover resolves loc and moves the mouse over it.
func Hover(ctx context.Context, t *Tab, loc string) error {
	el, err := Resolve(ctx, t, loc)
	if err != nil {
		return err
	}
	if err := el.Hover(); err != nil {
		return fmt.Errorf("browser: hover %q: %w", loc, err)
	}
	return nil
}

// Scroll scrolls the element named by loc into view, or the page down by one
// viewport height when loc is empty.
func Scroll(ctx context.Context, t *Tab, loc string) error {
	if loc != "" {
		el, err := Resolve(ctx, t, loc)
		if err != nil {
			return err
		}
		if err := el.ScrollIntoView(); err != nil {
			return fmt.Errorf("browser: scroll %q: %w", loc, err)
		}
		return nil
	}
	page, err := t.live()
	if err != nil {
		return err
	}
	dy := float64(t.mgr.cfg.ViewportHeight)
	if err := page.Context(ctx).Mouse.Scroll(0, dy, 1); err != nil {
		return fmt.Errorf("browser: scroll page: %w", err)
	}
	return nil
}
