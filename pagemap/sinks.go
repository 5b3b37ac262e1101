package pagemap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/domsight/pagemap/internal/sink"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Sink receives every snapshot and command outcome the engine produces.
type Sink = sink.Sink

// NewStdoutSink creates a JSON-lines sink on w (os.Stdout when nil).
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process sink. Either function may be nil.
func NewCallbackSink(
	onSnapshot func(ctx context.Context, snap *snapshot.Snapshot) error,
	onOutcome func(ctx context.Context, out *snapshot.Outcome) error,
) Sink {
	return sink.NewCallback(onSnapshot, onOutcome)
}

// sinksFromConfig builds the configured sinks.
func sinksFromConfig(cfgs []SinkConfig, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	for i, c := range cfgs {
		switch c.Type {
		case "stdout":
			out = append(out, NewStdoutSink(nil))
		case "webhook":
			out = append(out, NewWebhookSink(c.URL, logger))
		default:
			return nil, fmt.Errorf("pagemap: sinks[%d]: unknown type %q", i, c.Type)
		}
	}
	return out, nil
}
