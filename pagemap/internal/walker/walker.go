// Package walker traverses a captured document in shadow-inclusive document
// order and yields the nodes worth recording.
//
// The walk uses an explicit stack so depth is bounded by memory, not by the
// goroutine stack. When a host has an open shadow root and shadow traversal
// is on, the shadow root is pushed above the host's light children, so its
// subtree is emitted first, at the host's position.
package walker

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
	"github.com/hazyhaar/domsight/pagemap/internal/semantic"
	"github.com/hazyhaar/domsight/pagemap/internal/visibility"
)

// Predicate decides whether an element is a candidate.
type Predicate func(n *dom.Node) bool

// Options configure one walk.
type Options struct {
	Include              Predicate // nil means DefaultPredicate(nil)
	Shadow               bool
	CaptureOutOfViewport bool
	Viewport             dom.Viewport
	// MaxDepth stops descent below this depth; 0 means unlimited.
	MaxDepth int
	Logger   *slog.Logger
}

// Candidate is one node kept by the walk.
type Candidate struct {
	Node  *dom.Node
	Depth int
	// Box is the known rendered box, nil when the source could not tell.
	Box        *dom.Rect
	InViewport bool
}

// DefaultPredicate includes an element when its tag is in filter (or in the
// default relevant set when filter is nil), or when it has text of its own.
func DefaultPredicate(filter map[string]bool) Predicate {
	return func(n *dom.Node) bool {
		if filter != nil {
			if filter[n.Tag] {
				return true
			}
		} else if semantic.Relevant(n.Tag) {
			return true
		}
		return n.OwnText() != ""
	}
}

type frame struct {
	n     *dom.Node
	depth int
}

// Walk returns the candidates under root (root included) in pre-order.
func Walk(root *dom.Node, opts Options) []Candidate {
	if root == nil {
		return nil
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	include := opts.Include
	if include == nil {
		include = DefaultPredicate(nil)
	}

	var out []Candidate
	skipped := 0
	stack := []frame{{root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.n.Type == dom.ElementNode {
			c, ok, err := inspect(f.n, include, opts)
			if err != nil {
				skipped++
				log.Debug("walker: node skipped", "tag", f.n.Tag, "error", err)
			} else if ok {
				c.Depth = f.depth
				out = append(out, c)
			}
		}

		if opts.MaxDepth > 0 && f.depth >= opts.MaxDepth {
			continue
		}
		for i := len(f.n.Children) - 1; i >= 0; i-- {
			if c := f.n.Children[i]; c.Type == dom.ElementNode {
				stack = append(stack, frame{c, f.depth + 1})
			}
		}
		if opts.Shadow && f.n.Type == dom.ElementNode {
			if sr := f.n.OpenShadow(); sr != nil {
				stack = append(stack, frame{sr, f.depth + 1})
			}
		}
	}
	if skipped > 0 {
		log.Debug("walker: walk finished with skipped nodes", "skipped", skipped, "kept", len(out))
	}
	return out
}

// inspect applies the predicate and the visibility rules to one element. A
// panic in any of them is returned as an error so the walk can go on.
func inspect(n *dom.Node, include Predicate, opts Options) (c Candidate, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("walker: inspect <%s>: %v", n.Tag, r)
			ok = false
		}
	}()

	if !include(n) {
		return Candidate{}, false, nil
	}
	if !visibility.IsVisible(n) {
		return Candidate{}, false, nil
	}

	c = Candidate{Node: n, InViewport: true}
	if n.Layout.BoxErr == nil && n.Layout.Box != nil {
		box := *n.Layout.Box
		if box.Empty() {
			return Candidate{}, false, nil
		}
		c.Box = &box
		c.InViewport = visibility.InViewport(box, opts.Viewport)
	}
	if !c.InViewport && !opts.CaptureOutOfViewport {
		return Candidate{}, false, nil
	}
	return c, true, nil
}
