package snapshot

import (
	"encoding/json"
	"fmt"
)

// Action is the kind of command an orchestration loop can issue.
type Action string

const (
	ActionNavigate Action = "navigate"
	ActionClick    Action = "click"
	ActionFill     Action = "fill"
	ActionScroll   Action = "scroll"
	ActionHover    Action = "hover"
	ActionGoBack   Action = "goBack"
	ActionAnalyze  Action = "analyze"
)

// Command names one action and its payload.
type Command struct {
	Action  Action `json:"action"`
	Locator string `json:"locator,omitempty"`
	URL     string `json:"url,omitempty"`
	Value   string `json:"value,omitempty"`
	// Config applies to analyze. Fields it leaves out keep the page's
	// default configuration; see Overlay.
	Config json.RawMessage `json:"config,omitempty"`
}

// Validate checks that the command carries the payload its action needs.
func (c Command) Validate() error {
	switch c.Action {
	case ActionNavigate:
		if c.URL == "" {
			return fmt.Errorf("%w: navigate requires url", ErrConfiguration)
		}
	case ActionClick, ActionHover:
		if c.Locator == "" {
			return fmt.Errorf("%w: %s requires locator", ErrConfiguration, c.Action)
		}
	case ActionFill:
		if c.Locator == "" {
			return fmt.Errorf("%w: fill requires locator", ErrConfiguration)
		}
	case ActionScroll, ActionGoBack:
	case ActionAnalyze:
		cfg, err := Overlay(DefaultConfig(), c.Config)
		if err != nil {
			return err
		}
		return cfg.Validate()
	default:
		return fmt.Errorf("%w: unknown action %q", ErrConfiguration, c.Action)
	}
	return nil
}

// Outcome is the result of executing a Command. A stale locator is reported
// through NotFound, not as an error.
type Outcome struct {
	ID        string    `json:"id"` // UUIDv7
	PageID    string    `json:"page_id"`
	Action    Action    `json:"action"`
	Locator   string    `json:"locator,omitempty"`
	OK        bool      `json:"ok"`
	NotFound  bool      `json:"not_found,omitempty"`
	Stale     bool      `json:"stale,omitempty"`
	Error     string    `json:"error,omitempty"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"` // set for analyze
	Timestamp int64     `json:"timestamp"`          // epoch milliseconds
}

// Resolution is the result of resolving a locator against a page.
type Resolution struct {
	Locator string `json:"locator"`
	Found   bool   `json:"found"`
	Tag     string `json:"tag,omitempty"`
	// Stale is true when the page mutated structurally since its latest
	// snapshot, so even a successful match may be a different element.
	Stale bool `json:"stale,omitempty"`
}
