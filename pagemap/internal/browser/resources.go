package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockNames maps CDP resource types to configuration names.
var blockNames = map[proto.NetworkResourceType]string{
	proto.NetworkResourceTypeImage:      "images",
	proto.NetworkResourceTypeFont:       "fonts",
	proto.NetworkResourceTypeMedia:      "media",
	proto.NetworkResourceTypeStylesheet: "stylesheets",
}

// blockSet normalises configured names to a set.
func blockSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return set
}

// shouldBlock reports whether a request of type rt is blocked. Unmapped types
// match on their lowercase CDP name ("script", "xhr", ...).
func shouldBlock(set map[string]bool, rt proto.NetworkResourceType) bool {
	if name, ok := blockNames[rt]; ok {
		return set[name]
	}
	return set[strings.ToLower(string(rt))]
}

// blockResources hijacks page requests and fails the blocked types. The
// returned router must be stopped when the tab closes.
//
// Stylesheet blocking changes computed styles and therefore what a snapshot
// considers visible.
func blockResources(page *rod.Page, types []string) *rod.HijackRouter {
	set := blockSet(types)
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(set, h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
