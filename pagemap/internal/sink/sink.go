// Package sink delivers snapshots and command outcomes to output backends.
package sink

import (
	"context"

	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Sink is the output interface. Implementations deliver observations to
// different backends (stdout, webhook, in-process callback).
type Sink interface {
	SendSnapshot(ctx context.Context, snap *snapshot.Snapshot) error
	SendOutcome(ctx context.Context, out *snapshot.Outcome) error
	Close() error
}

// Envelope types.
const (
	TypeSnapshot = "snapshot"
	TypeOutcome  = "outcome"
)

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
