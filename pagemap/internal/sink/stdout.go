package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) SendSnapshot(_ context.Context, snap *snapshot.Snapshot) error {
	return s.write(TypeSnapshot, snap)
}

func (s *Stdout) SendOutcome(_ context.Context, out *snapshot.Outcome) error {
	return s.write(TypeOutcome, out)
}

func (s *Stdout) Close() error { return nil }

func (s *Stdout) write(typ string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: typ, Data: data})
}
