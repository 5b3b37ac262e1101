package browser

import (
	"context"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Tracker counts structural DOM mutations on a tab. Locators synthesised at
// generation g are only guaranteed to resolve while the count is still g.
//
// CDP only reports mutations under nodes the client has requested; every
// capture requests the whole tree, so tracking is complete from the first
// capture on.
type Tracker struct {
	gen  atomic.Uint64
	stop context.CancelFunc
}

// Generation returns the current mutation count.
func (t *Tracker) Generation() uint64 {
	if t == nil {
		return 0
	}
	return t.gen.Load()
}

// Bump records one structural change.
func (t *Tracker) Bump() { t.gen.Add(1) }

// Stop ends event delivery.
func (t *Tracker) Stop() {
	if t != nil && t.stop != nil {
		t.stop()
	}
}

// track enables the DOM domain on page and bumps the tracker on every event
// that inserts, removes or reorders nodes. Attribute and text changes do not
// move nodes and are ignored. Whitespace text nodes are kept so captured text
// node ranks match the page.
func track(ctx context.Context, page *rod.Page) (*Tracker, error) {
	if err := (proto.DOMEnable{IncludeWhitespace: proto.DOMEnableIncludeWhitespaceAll}).Call(page); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &Tracker{stop: cancel}

	wait := page.Context(ctx).EachEvent(
		func(*proto.DOMChildNodeInserted) { t.Bump() },
		func(*proto.DOMChildNodeRemoved) { t.Bump() },
		func(*proto.DOMChildNodeCountUpdated) { t.Bump() },
		func(*proto.DOMShadowRootPushed) { t.Bump() },
		func(*proto.DOMShadowRootPopped) { t.Bump() },
		func(*proto.DOMDocumentUpdated) { t.Bump() },
		func(e *proto.PageFrameNavigated) {
			if e.Frame != nil && e.Frame.ParentID == "" {
				t.Bump()
			}
		},
	)
	go wait()
	return t, nil
}
