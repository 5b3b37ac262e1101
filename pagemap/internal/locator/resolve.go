package locator

import (
	"fmt"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Resolve evaluates loc against doc and returns the first node in document
// order it selects. It follows XPath child-axis semantics: a step without a
// rank selects every matching child, a ranked step selects the n-th. Any
// failure wraps snapshot.ErrNotFound.
func Resolve(doc *dom.Document, loc string) (*dom.Node, error) {
	if doc == nil || doc.Root == nil {
		return nil, fmt.Errorf("%w: no document", snapshot.ErrNotFound)
	}
	steps, err := Parse(loc)
	if err != nil {
		return nil, err
	}

	current := []*dom.Node{doc.Root}
	for _, s := range steps {
		var next []*dom.Node
		for _, parent := range current {
			next = append(next, follow(parent, s)...)
		}
		if len(next) == 0 {
			return nil, fmt.Errorf("%w: %q: no match at step %q", snapshot.ErrNotFound, loc, s)
		}
		current = next
	}
	return current[0], nil
}

// follow applies one step from parent.
func follow(parent *dom.Node, s Step) []*dom.Node {
	if s.Name == ShadowStep {
		if sr := parent.OpenShadow(); sr != nil {
			return []*dom.Node{sr}
		}
		return nil
	}

	var matches []*dom.Node
	for _, c := range parent.Children {
		if matchStep(c, s.Name) {
			matches = append(matches, c)
		}
	}
	if s.Index == 0 {
		return matches
	}
	if s.Index > len(matches) {
		return nil
	}
	return matches[s.Index-1 : s.Index]
}

func matchStep(n *dom.Node, name string) bool {
	switch name {
	case "text()":
		return n.Type == dom.TextNode
	case "comment()":
		return n.Type == dom.CommentNode
	}
	return n.Type == dom.ElementNode && n.Tag == name
}
