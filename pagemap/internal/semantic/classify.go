package semantic

import (
	"strings"

	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// navHints mark a list as navigation when they appear in its class.
var navHints = []string{"nav", "menu", "breadcrumb", "pagination", "tabs"}

// groupKinds pairs each group with its kind, in rule order.
var groupKinds = []struct {
	group string
	kind  Kind
}{
	{snapshot.GroupNavigation, KindNavigation},
	{snapshot.GroupInteraction, KindInteraction},
	{snapshot.GroupForms, KindForm},
	{snapshot.GroupMedia, KindMedia},
	{snapshot.GroupContent, KindContent},
}

// Classify assigns each record to at most one group and returns the indexes
// of the members of each non-empty group, in record order. The first matching
// rule wins; records matching none are left out.
func Classify(records []snapshot.Element) map[string][]int {
	groups := make(map[string][]int)
	for i, e := range records {
		if g := groupOf(e); g != "" {
			groups[g] = append(groups[g], i)
		}
	}
	return groups
}

// GroupOf returns the group of a single record, or "".
func GroupOf(e snapshot.Element) string {
	return groupOf(e)
}

func groupOf(e snapshot.Element) string {
	kinds := descriptors[e.Tag].Kinds
	if role, ok := e.Attr("role"); ok {
		if f := strings.Fields(strings.ToLower(role)); len(f) > 0 {
			kinds |= roleKinds[f[0]]
		}
	}
	if navList(e) {
		kinds |= KindNavigation
	}
	for _, gk := range groupKinds {
		if kinds&gk.kind == 0 {
			continue
		}
		if gk.kind == KindContent && e.Text == "" {
			continue
		}
		return gk.group
	}
	return ""
}

func navList(e snapshot.Element) bool {
	switch e.Tag {
	case "ul", "ol", "li", "menu":
	default:
		return false
	}
	class, _ := e.Attr("class")
	class = strings.ToLower(class)
	for _, h := range navHints {
		if strings.Contains(class, h) {
			return true
		}
	}
	return false
}
