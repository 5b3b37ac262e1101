package pagemap

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/domsight/pagemap/internal/browser"
	"github.com/hazyhaar/domsight/pagemap/internal/journal"
	"github.com/hazyhaar/domsight/pagemap/internal/locator"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Execute runs cmd on a page and reports what happened. A locator that no
// longer resolves is an Outcome with NotFound set, not an error. Execute
// returns an error only when the command cannot be attempted: an invalid
// command or navigation target, an unknown page, or an interaction a static
// page cannot perform (snapshot.ErrUnsupported). Every attempted command and
// every unsupported one is journaled.
func (e *Engine) Execute(ctx context.Context, pageID string, cmd snapshot.Command) (*snapshot.Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.Action == snapshot.ActionNavigate {
		if err := e.checkURL(ctx, cmd.URL); err != nil {
			return nil, err
		}
	}
	p, err := e.page(pageID)
	if err != nil {
		return nil, err
	}

	out := &snapshot.Outcome{
		ID:        e.newID(),
		PageID:    pageID,
		Action:    cmd.Action,
		Locator:   cmd.Locator,
		Timestamp: e.now().UnixMilli(),
	}

	p.mu.Lock()
	snapID := ""
	if p.latest != nil {
		snapID = p.latest.ID
	}
	err = e.dispatch(ctx, p, cmd, out)
	switch {
	case err == nil:
		out.OK = true
	case errors.Is(err, snapshot.ErrNotFound):
		out.NotFound = true
		out.Stale = p.stale()
	default:
		out.Error = err.Error()
	}
	if out.Snapshot != nil {
		snapID = out.Snapshot.ID
	}
	p.mu.Unlock()

	e.record(ctx, cmd, out, snapID)
	if errors.Is(err, snapshot.ErrUnsupported) {
		return nil, err
	}

	e.logger.Info("pagemap: command executed",
		"page_id", pageID, "action", cmd.Action, "locator", cmd.Locator,
		"ok", out.OK, "not_found", out.NotFound)

	if out.Snapshot != nil {
		if err := e.sinkR.SendSnapshot(ctx, out.Snapshot); err != nil {
			e.logger.Warn("pagemap: snapshot delivery failed", "page_id", pageID, "error", err)
		}
	}
	if err := e.sinkR.SendOutcome(ctx, out); err != nil {
		e.logger.Warn("pagemap: outcome delivery failed", "page_id", pageID, "error", err)
	}
	return out, nil
}

// dispatch performs cmd. The caller holds p.mu.
func (e *Engine) dispatch(ctx context.Context, p *page, cmd snapshot.Command, out *snapshot.Outcome) error {
	if cmd.Action == snapshot.ActionAnalyze {
		cfg, err := e.overrideConfig(cmd.Config)
		if err != nil {
			return err
		}
		snap, err := e.snapshotLocked(ctx, p, cfg)
		if err != nil {
			return err
		}
		out.Snapshot = snap
		return nil
	}
	if p.live() {
		return e.dispatchLive(ctx, p, cmd)
	}
	return e.dispatchStatic(ctx, p, cmd)
}

func (e *Engine) dispatchLive(ctx context.Context, p *page, cmd snapshot.Command) error {
	t := p.tab
	switch cmd.Action {
	case snapshot.ActionNavigate:
		if err := t.Navigate(ctx, cmd.URL); err != nil {
			return err
		}
		p.url = cmd.URL
		return nil
	case snapshot.ActionGoBack:
		if err := t.GoBack(ctx); err != nil {
			return err
		}
		if u := t.URL(); u != "" {
			p.url = u
		}
		return nil
	case snapshot.ActionClick:
		return browser.Click(ctx, t, cmd.Locator)
	case snapshot.ActionFill:
		return browser.Fill(ctx, t, cmd.Locator, cmd.Value)
	case snapshot.ActionHover:
		return browser.Hover(ctx, t, cmd.Locator)
	case snapshot.ActionScroll:
		return browser.Scroll(ctx, t, cmd.Locator)
	}
	return fmt.Errorf("%w: %s", snapshot.ErrUnsupported, cmd.Action)
}

// dispatchStatic runs navigation on a static page by fetching again.
// Interactions resolve their locator first so a vanished element reports
// NotFound, then fail as unsupported.
func (e *Engine) dispatchStatic(ctx context.Context, p *page, cmd snapshot.Command) error {
	switch cmd.Action {
	case snapshot.ActionNavigate:
		prev := p.url
		if err := e.load(ctx, p, cmd.URL); err != nil {
			return err
		}
		p.history = append(p.history, prev)
		return nil
	case snapshot.ActionGoBack:
		if len(p.history) == 0 {
			return fmt.Errorf("pagemap: %s: no history", p.id)
		}
		prev := p.history[len(p.history)-1]
		if err := e.load(ctx, p, prev); err != nil {
			return err
		}
		p.history = p.history[:len(p.history)-1]
		return nil
	}
	if cmd.Locator != "" {
		if _, err := locator.Resolve(p.doc, cmd.Locator); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s on static page %q", snapshot.ErrUnsupported, cmd.Action, p.id)
}

// load fetches pageURL into a static page. The new document continues the
// old one's generation so locators from earlier snapshots report stale.
func (e *Engine) load(ctx context.Context, p *page, pageURL string) error {
	res, err := e.fetch.Fetch(ctx, pageURL)
	if err != nil {
		return err
	}
	var gen uint64
	if p.doc != nil {
		gen = p.doc.Generation + 1
	}
	res.Doc.Generation = gen
	p.doc, p.url = res.Doc, res.Doc.URL
	return nil
}

// record journals a command. Journal failures are logged.
func (e *Engine) record(ctx context.Context, cmd snapshot.Command, out *snapshot.Outcome, snapID string) {
	if e.jrnl == nil {
		return
	}
	if err := e.jrnl.Record(ctx, journal.FromOutcome(cmd, out, snapID)); err != nil {
		e.logger.Warn("pagemap: journal record failed", "outcome_id", out.ID, "error", err)
	}
}
