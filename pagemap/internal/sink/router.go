package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Router fans out to all configured sinks. One sink error does not block
// the others: errors are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add appends a sink. It must not be called concurrently with sends.
func (r *Router) Add(s Sink) { r.sinks = append(r.sinks, s) }

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) SendSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	return r.each(func(s Sink) error { return s.SendSnapshot(ctx, snap) }, "sink: send snapshot failed", "snapshot_id", snap.ID)
}

func (r *Router) SendOutcome(ctx context.Context, out *snapshot.Outcome) error {
	return r.each(func(s Sink) error { return s.SendOutcome(ctx, out) }, "sink: send outcome failed", "outcome_id", out.ID)
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) each(send func(Sink) error, msg, key, id string) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := send(s); err != nil {
			r.logger.Warn(msg, key, id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
