// Package assemble turns a captured document into a snapshot.Snapshot.
//
// Assemble holds no state between calls. Optional sections (title, metadata,
// viewport) are built independently; a section that fails is left out and
// logged, it never fails the snapshot.
package assemble

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
	"github.com/hazyhaar/domsight/pagemap/internal/locator"
	"github.com/hazyhaar/domsight/pagemap/internal/semantic"
	"github.com/hazyhaar/domsight/pagemap/internal/walker"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Options carry per-call context that is not part of snapshot.Config.
type Options struct {
	PageID string
	// Now stamps the snapshot; nil means time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Assemble captures doc under cfg. The only error it returns is a
// configuration error wrapping snapshot.ErrConfiguration.
func Assemble(doc *dom.Document, cfg snapshot.Config, opts Options) (*snapshot.Snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	snap := &snapshot.Snapshot{
		PageID:    opts.PageID,
		Timestamp: now().UnixMilli(),
		Elements:  []snapshot.Element{},
	}
	if doc == nil || doc.Root == nil {
		return snap, nil
	}
	snap.URL = doc.URL
	snap.Generation = doc.Generation

	if cfg.IncludeTitle {
		section(log, "title", func() { snap.Title = title(doc) })
	}
	if cfg.IncludeMetadata {
		section(log, "metadata", func() { snap.Metadata = metadata(doc) })
	}
	if cfg.IncludeViewportInfo {
		section(log, "viewport", func() {
			vp := doc.Viewport
			snap.Viewport = &snapshot.Viewport{Width: vp.Width, Height: vp.Height, ScrollX: vp.ScrollX, ScrollY: vp.ScrollY}
		})
	}

	candidates := walker.Walk(doc.Root, walker.Options{
		Include:              walker.DefaultPredicate(cfg.Filter()),
		Shadow:               cfg.IncludeShadowDOM,
		CaptureOutOfViewport: cfg.CaptureOutOfViewport,
		Viewport:             doc.Viewport,
		Logger:               log,
	})
	limit := cfg.TruncateLength()
	synth := locator.NewSynthesizer()
	for _, c := range candidates {
		e, err := record(synth, c, limit, cfg.IncludePosition)
		if err != nil {
			log.Debug("assemble: record skipped", "error", err)
			continue
		}
		snap.Elements = append(snap.Elements, e)
	}

	section(log, "semantic_groups", func() {
		if groups := semantic.Classify(snap.Elements); len(groups) > 0 {
			snap.SemanticGroups = groups
		}
	})
	return snap, nil
}

// section runs fn and logs a panic instead of propagating it.
func section(log *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("assemble: section omitted", "section", name, "error", r)
		}
	}()
	fn()
}

func record(synth *locator.Synthesizer, c walker.Candidate, limit int, withBox bool) (e snapshot.Element, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("assemble: record <%s>: %v", c.Node.Tag, r)
		}
	}()

	n := c.Node
	e = snapshot.Element{
		Tag:        n.Tag,
		Locator:    synth.Synthesize(n),
		Text:       n.TextPrefix(limit),
		InViewport: c.InViewport,
		Attributes: semantic.ExtractAttrs(n),
		Role:       semantic.RoleOf(n),
	}
	if withBox && c.Box != nil {
		e.Box = &snapshot.Box{X: c.Box.X, Y: c.Box.Y, Width: c.Box.Width, Height: c.Box.Height}
	}
	return e, nil
}

// title prefers the host-reported title and falls back to <title>.
func title(doc *dom.Document) string {
	if doc.Title != "" {
		return doc.Title
	}
	if t := doc.Root.Find(dom.ByTag("title")); t != nil {
		return t.TextContent()
	}
	return ""
}

// metadata collects <meta name|property content> pairs. Keys are lowercased;
// the first occurrence of a key wins.
func metadata(doc *dom.Document) map[string]string {
	scope := doc.Head()
	if scope == nil {
		scope = doc.Root
	}
	out := make(map[string]string)
	stack := []*dom.Node{scope}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == dom.ElementNode && n.Tag == "meta" {
			key, ok := n.Attr("name")
			if !ok {
				key, ok = n.Attr("property")
			}
			if !ok {
				key, ok = n.Attr("http-equiv")
			}
			content, hasContent := n.Attr("content")
			key = strings.ToLower(strings.TrimSpace(key))
			if ok && hasContent && key != "" {
				if _, dup := out[key]; !dup {
					out[key] = content
				}
			}
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
