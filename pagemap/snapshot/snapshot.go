// Package snapshot defines the value types produced by pagemap. These are
// the public contract: action executors, visualizers and agent loops import
// this package to consume page observations.
package snapshot

// Group names assigned by the semantic classifier.
const (
	GroupNavigation  = "navigation"
	GroupInteraction = "interaction"
	GroupForms       = "forms"
	GroupMedia       = "media"
	GroupContent     = "content"
)

// Groups lists the semantic groups in rule evaluation order.
var Groups = []string{GroupNavigation, GroupInteraction, GroupForms, GroupMedia, GroupContent}

// Box is an element's rendered bounding box in viewport-relative CSS pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport describes the visible area of the page at capture time.
type Viewport struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	ScrollX float64 `json:"scroll_x"`
	ScrollY float64 `json:"scroll_y"`
}

// Attribute is one extracted attribute. Element attributes are kept as an
// ordered list so serialisation order is stable.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Element is one captured DOM node. It is never mutated after capture; the
// next snapshot supersedes it.
type Element struct {
	Tag        string      `json:"tag"`
	Locator    string      `json:"locator"`
	Text       string      `json:"text,omitempty"`
	Box        *Box        `json:"bounding_box,omitempty"`
	InViewport bool        `json:"in_viewport"`
	Attributes []Attribute `json:"attributes,omitempty"`
	Role       string      `json:"role,omitempty"`
}

// Attr returns the value of the named extracted attribute.
func (e Element) Attr(name string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Snapshot is one observation of a whole page. Elements are in shadow-inclusive
// document pre-order. SemanticGroups maps a group name to indexes into Elements.
type Snapshot struct {
	ID             string            `json:"id"`      // UUIDv7
	PageID         string            `json:"page_id"` // stable identifier provided by caller
	URL            string            `json:"url"`
	Timestamp      int64             `json:"timestamp"` // epoch milliseconds at capture
	Title          string            `json:"title,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Viewport       *Viewport         `json:"viewport,omitempty"`
	Elements       []Element         `json:"elements"`
	SemanticGroups map[string][]int  `json:"semantic_groups,omitempty"`
	// Generation is the page's structural mutation counter at capture time.
	// Locators are only guaranteed to resolve while it is unchanged.
	Generation uint64 `json:"generation,omitempty"`
}

// Group returns the records of a semantic group in document order.
func (s *Snapshot) Group(name string) []Element {
	idx := s.SemanticGroups[name]
	if len(idx) == 0 {
		return nil
	}
	out := make([]Element, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(s.Elements) {
			out = append(out, s.Elements[i])
		}
	}
	return out
}

// Find returns the first record with the given locator.
func (s *Snapshot) Find(locator string) (Element, bool) {
	for _, e := range s.Elements {
		if e.Locator == locator {
			return e, true
		}
	}
	return Element{}, false
}
