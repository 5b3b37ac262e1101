package sink

import (
	"context"

	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// SnapshotFunc is called for each snapshot.
type SnapshotFunc func(ctx context.Context, snap *snapshot.Snapshot) error

// OutcomeFunc is called for each command outcome.
type OutcomeFunc func(ctx context.Context, out *snapshot.Outcome) error

// Callback hands observations to Go functions in the same process, without
// serialisation. The values are shared; handlers must not modify them.
type Callback struct {
	onSnapshot SnapshotFunc
	onOutcome  OutcomeFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onSnapshot SnapshotFunc, onOutcome OutcomeFunc) *Callback {
	return &Callback{onSnapshot: onSnapshot, onOutcome: onOutcome}
}

func (c *Callback) SendSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	if c.onSnapshot != nil {
		return c.onSnapshot(ctx, snap)
	}
	return nil
}

func (c *Callback) SendOutcome(ctx context.Context, out *snapshot.Outcome) error {
	if c.onOutcome != nil {
		return c.onOutcome(ctx, out)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
