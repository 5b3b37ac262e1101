// Package semantic holds the per-tag descriptor table and the classifier that
// sorts element records into coarse groups for downstream summarisation.
package semantic

import (
	"strings"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Kind is a bit set of the groups a tag or role can belong to.
type Kind uint8

const (
	KindNavigation Kind = 1 << iota
	KindInteraction
	KindForm
	KindMedia
	KindContent
)

// Descriptor is what the engine knows about one tag.
type Descriptor struct {
	// Relevant tags are captured by default even without text of their own.
	Relevant bool
	// Attrs are extracted in this order, after the common attributes.
	Attrs []string
	// Role is the implicit ARIA role, if any.
	Role  string
	Kinds Kind
}

// commonAttrs are extracted from every element, in this order.
var commonAttrs = []string{"id", "class", "role", "aria-label", "title"}

var headings = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

// descriptors is built once and only read afterwards.
var descriptors = buildDescriptors()

func buildDescriptors() map[string]Descriptor {
	d := map[string]Descriptor{
		"a":        {Relevant: true, Attrs: []string{"href", "target", "rel"}, Role: "link", Kinds: KindInteraction},
		"button":   {Relevant: true, Attrs: []string{"type", "name", "value", "disabled"}, Role: "button", Kinds: KindInteraction},
		"summary":  {Role: "button", Kinds: KindInteraction},
		"input":    {Relevant: true, Attrs: []string{"type", "name", "value", "placeholder", "checked", "disabled", "required"}, Role: "textbox", Kinds: KindForm},
		"select":   {Relevant: true, Attrs: []string{"name", "multiple", "disabled", "required"}, Role: "combobox", Kinds: KindForm},
		"textarea": {Relevant: true, Attrs: []string{"name", "placeholder", "disabled", "required"}, Role: "textbox", Kinds: KindForm},
		"option":   {Attrs: []string{"value", "selected"}, Role: "option", Kinds: KindForm},
		"form":     {Attrs: []string{"name", "action", "method"}, Role: "form", Kinds: KindForm},
		"label":    {Relevant: true, Attrs: []string{"for"}, Kinds: KindContent},
		"img":      {Relevant: true, Attrs: []string{"src", "alt", "width", "height"}, Role: "img", Kinds: KindMedia},
		"video":    {Attrs: []string{"src", "poster", "controls"}, Kinds: KindMedia},
		"audio":    {Attrs: []string{"src", "controls"}, Kinds: KindMedia},
		"picture":  {Kinds: KindMedia},
		"svg":      {Role: "img", Kinds: KindMedia},
		"canvas":   {Attrs: []string{"width", "height"}, Kinds: KindMedia},
		"nav":      {Role: "navigation", Kinds: KindNavigation},
		"p":        {Relevant: true, Role: "paragraph", Kinds: KindContent},
		"li":       {Relevant: true, Attrs: []string{"value"}, Role: "listitem", Kinds: KindContent},
		"ul":       {Role: "list"},
		"ol":       {Role: "list"},
		"span":     {Kinds: KindContent},
		"div":      {Kinds: KindContent},
		"td":       {Role: "cell", Kinds: KindContent},
		"th":       {Role: "columnheader", Kinds: KindContent},
		"pre":      {Kinds: KindContent},
	}
	for _, h := range headings {
		d[h] = Descriptor{Relevant: true, Role: "heading", Kinds: KindContent}
	}
	d["blockquote"] = Descriptor{Kinds: KindContent}
	return d
}

// roleKinds maps explicit ARIA roles to groups.
var roleKinds = map[string]Kind{
	"navigation": KindNavigation,
	"menubar":    KindNavigation,
	"menu":       KindNavigation,
	"tablist":    KindNavigation,
	"button":     KindInteraction,
	"link":       KindInteraction,
	"checkbox":   KindInteraction,
	"radio":      KindInteraction,
	"switch":     KindInteraction,
	"tab":        KindInteraction,
	"menuitem":   KindInteraction,
	"slider":     KindInteraction,
	"form":       KindForm,
	"search":     KindForm,
	"textbox":    KindForm,
	"searchbox":  KindForm,
	"combobox":   KindForm,
	"listbox":    KindForm,
	"img":        KindMedia,
	"figure":     KindMedia,
}

// inputRoles refines the implicit role of <input> by type.
var inputRoles = map[string]string{
	"button":   "button",
	"submit":   "button",
	"reset":    "button",
	"image":    "button",
	"checkbox": "checkbox",
	"radio":    "radio",
	"range":    "slider",
	"search":   "searchbox",
	"hidden":   "",
}

// Lookup returns the descriptor for a lowercase tag.
func Lookup(tag string) (Descriptor, bool) {
	d, ok := descriptors[tag]
	return d, ok
}

// Relevant reports whether tag is in the default relevant set.
func Relevant(tag string) bool {
	return descriptors[tag].Relevant
}

// RoleOf returns the explicit role attribute of n, or its implicit role.
func RoleOf(n *dom.Node) string {
	if r, ok := n.Attr("role"); ok {
		if r = strings.TrimSpace(strings.ToLower(r)); r != "" {
			// A role attribute may list fallbacks; the first token wins.
			if i := strings.IndexByte(r, ' '); i > 0 {
				r = r[:i]
			}
			return r
		}
	}
	switch n.Tag {
	case "a":
		if !n.HasAttr("href") {
			return ""
		}
	case "input":
		t, _ := n.Attr("type")
		if r, ok := inputRoles[strings.ToLower(t)]; ok {
			return r
		}
	}
	return descriptors[n.Tag].Role
}

// ExtractAttrs returns the common attributes followed by the tag-specific
// ones, skipping any that are absent.
func ExtractAttrs(n *dom.Node) []snapshot.Attribute {
	var out []snapshot.Attribute
	add := func(names []string) {
		for _, name := range names {
			if v, ok := n.Attr(name); ok {
				out = append(out, snapshot.Attribute{Name: name, Value: v})
			}
		}
	}
	add(commonAttrs)
	add(descriptors[n.Tag].Attrs)
	return out
}
