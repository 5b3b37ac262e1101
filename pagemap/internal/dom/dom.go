// Package dom is the in-memory document model every pagemap component reads.
// A Document is captured once per snapshot call (from a live tab or from
// static HTML) and is never mutated afterwards, so any number of readers may
// walk it concurrently.
package dom

import (
	"strings"
	"unicode/utf8"
)

// NodeType mirrors the DOM nodeType values.
type NodeType int

const (
	ElementNode  NodeType = 1
	TextNode     NodeType = 3
	CommentNode  NodeType = 8
	DocumentNode NodeType = 9
	DoctypeNode  NodeType = 10
	FragmentNode NodeType = 11
)

// ShadowMode is the mode of an attached shadow root.
type ShadowMode string

const (
	ShadowOpen      ShadowMode = "open"
	ShadowClosed    ShadowMode = "closed"
	ShadowUserAgent ShadowMode = "user-agent"
)

// Attr is a single attribute in source order.
type Attr struct {
	Name  string
	Value string
}

// Node is a DOM node. A shadow root is a FragmentNode whose Parent is its
// host; the host points at it through Shadow and never lists it in Children.
type Node struct {
	Type NodeType
	// Tag is the lowercase local name for elements, "#text", "#comment",
	// "#document" or "#document-fragment" otherwise.
	Tag   string
	Data  string // character data for text and comment nodes
	Attrs []Attr

	Parent   *Node
	Children []*Node

	Shadow     *Node      // attached shadow root, if any
	ShadowMode ShadowMode // set on the shadow root itself

	Layout Layout

	// BackendID is the CDP backend node id for live captures, 0 otherwise.
	BackendID int
}

// NewElement returns a detached element node.
func NewElement(tag string, attrs ...Attr) *Node {
	return &Node{Type: ElementNode, Tag: strings.ToLower(tag), Attrs: attrs}
}

// NewText returns a detached text node.
func NewText(data string) *Node {
	return &Node{Type: TextNode, Tag: "#text", Data: data}
}

// AppendChild appends c to n's children and sets its parent.
func (n *Node) AppendChild(c *Node) *Node {
	c.Parent = n
	n.Children = append(n.Children, c)
	return c
}

// AttachShadow attaches a new shadow root to n and returns it.
func (n *Node) AttachShadow(mode ShadowMode) *Node {
	sr := &Node{Type: FragmentNode, Tag: "#document-fragment", Parent: n, ShadowMode: mode}
	n.Shadow = sr
	return sr
}

// IsElement reports whether n is an element.
func (n *Node) IsElement() bool { return n != nil && n.Type == ElementNode }

// IsShadowRoot reports whether n is a shadow root attached to a host.
func (n *Node) IsShadowRoot() bool {
	return n != nil && n.Type == FragmentNode && n.Parent != nil && n.Parent.Shadow == n
}

// OpenShadow returns n's shadow root when it is open (page scripts can reach it).
func (n *Node) OpenShadow() *Node {
	if n.Shadow != nil && n.Shadow.ShadowMode == ShadowOpen {
		return n.Shadow
	}
	return nil
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Attr(name)
	return ok
}

// nonTextTags never contribute visible text.
var nonTextTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true,
}

// OwnText returns the whitespace-normalised text of n's direct text children.
func (n *Node) OwnText() string {
	if nonTextTags[n.Tag] {
		return ""
	}
	var b strings.Builder
	for _, c := range n.Children {
		if c.Type == TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	}
	return NormalizeSpace(b.String())
}

// TextContent returns the whitespace-normalised light-DOM text of n's subtree,
// skipping script, style and template content.
func (n *Node) TextContent() string {
	if n.Type == TextNode {
		return NormalizeSpace(n.Data)
	}
	var b strings.Builder
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch cur.Type {
		case TextNode:
			b.WriteString(cur.Data)
			b.WriteByte(' ')
			continue
		case ElementNode:
			if nonTextTags[cur.Tag] {
				continue
			}
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
	return NormalizeSpace(b.String())
}

// TextPrefix returns Truncate(n.TextContent(), max) without collecting text
// past the first max runes. A max of zero or less returns the whole text.
func (n *Node) TextPrefix(max int) string {
	if max <= 0 {
		return n.TextContent()
	}
	var b strings.Builder
	count := 0
	add := func(data string) bool {
		for _, w := range strings.Fields(data) {
			if b.Len() > 0 {
				b.WriteByte(' ')
				count++
			}
			b.WriteString(w)
			count += utf8.RuneCountInString(w)
			if count >= max {
				return true
			}
		}
		return false
	}
	if n.Type == TextNode {
		add(n.Data)
		return Truncate(b.String(), max)
	}
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch cur.Type {
		case TextNode:
			if add(cur.Data) {
				return Truncate(b.String(), max)
			}
			continue
		case ElementNode:
			if nonTextTags[cur.Tag] {
				continue
			}
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
	return b.String()
}

// NormalizeSpace collapses runs of whitespace into single spaces and trims.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Find returns the first node in n's light-DOM subtree (n included) for which
// match returns true, in document order.
func (n *Node) Find(match func(*Node) bool) *Node {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if match(cur) {
			return cur
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
	return nil
}

// ByTag returns a matcher for elements with the given lowercase tag.
func ByTag(tag string) func(*Node) bool {
	return func(n *Node) bool { return n.Type == ElementNode && n.Tag == tag }
}

// ByID returns a matcher for elements with the given id attribute.
func ByID(id string) func(*Node) bool {
	return func(n *Node) bool {
		if n.Type != ElementNode {
			return false
		}
		v, ok := n.Attr("id")
		return ok && v == id
	}
}
