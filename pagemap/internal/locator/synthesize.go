// Package locator converts DOM nodes to canonical structural addresses and
// back. A locator is an absolute XPath made of tag[rank] steps, plus a
// "shadow-root" step to cross from a host into its shadow tree:
//
//	/html/body/ul/li[2]
//	/html/body/div[3]/shadow-root/button
package locator

import (
	"strconv"
	"strings"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
)

// ShadowStep is the step that moves from a host into its shadow root.
const ShadowStep = "shadow-root"

// Synthesize returns the locator of n, or "" for a nil node.
//
// Each step is the node's tag, suffixed with its 1-based rank among
// same-tag siblings when it has any. The document element and body
// short-circuit the walk. A detached node yields a path rooted at its highest
// ancestor, which will not resolve from the document.
func Synthesize(n *dom.Node) string {
	return NewSynthesizer().Synthesize(n)
}

// Synthesizer remembers the steps of every child of each parent it has
// ranked, so locating many nodes of one document ranks each sibling list
// once. It belongs to a single call and is not safe for concurrent use.
type Synthesizer struct {
	steps map[*dom.Node]string
}

// NewSynthesizer returns an empty Synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{steps: make(map[*dom.Node]string)}
}

// Synthesize is the package-level Synthesize with ranks cached in s.
func (s *Synthesizer) Synthesize(n *dom.Node) string {
	if n == nil {
		return ""
	}

	var steps []string
	cur := n
walk:
	for cur != nil {
		parent := cur.Parent
		switch cur.Type {
		case dom.DocumentNode:
			break walk

		case dom.FragmentNode:
			if !cur.IsShadowRoot() {
				break walk
			}
			steps = append(steps, ShadowStep)

		case dom.ElementNode:
			if cur.Tag == "html" && isDocument(parent) {
				steps = append(steps, "html")
				break walk
			}
			if cur.Tag == "body" && parent != nil && parent.Tag == "html" && isDocument(parent.Parent) {
				steps = append(steps, "body", "html")
				break walk
			}
			steps = append(steps, s.step(cur, parent))

		case dom.TextNode, dom.CommentNode:
			steps = append(steps, s.step(cur, parent))

		default:
			break walk
		}
		cur = parent
	}

	if len(steps) == 0 {
		return ""
	}
	var b strings.Builder
	for i := len(steps) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(steps[i])
	}
	return b.String()
}

func isDocument(n *dom.Node) bool {
	return n != nil && n.Type == dom.DocumentNode
}

// step renders n's name with a rank suffix when n shares its name with
// another child of parent.
func (s *Synthesizer) step(n, parent *dom.Node) string {
	if parent == nil {
		return stepName(n)
	}
	if st, ok := s.steps[n]; ok {
		return st
	}
	s.rank(parent)
	if st, ok := s.steps[n]; ok {
		return st
	}
	// n claims parent but is not among its children.
	return stepName(n)
}

// rank records the step of every child of parent.
func (s *Synthesizer) rank(parent *dom.Node) {
	total := make(map[string]int)
	for _, c := range parent.Children {
		total[stepName(c)]++
	}
	seen := make(map[string]int, len(total))
	for _, c := range parent.Children {
		name := stepName(c)
		seen[name]++
		if total[name] > 1 {
			s.steps[c] = name + "[" + strconv.Itoa(seen[name]) + "]"
		} else {
			s.steps[c] = name
		}
	}
}

func stepName(n *dom.Node) string {
	switch n.Type {
	case dom.TextNode:
		return "text()"
	case dom.CommentNode:
		return "comment()"
	case dom.ElementNode:
		return n.Tag
	}
	return "#" + strconv.Itoa(int(n.Type))
}
