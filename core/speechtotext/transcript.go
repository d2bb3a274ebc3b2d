package speechtotext

import (
	"strings"
	"sync"
)

// Transcript accumulates finalized segments. It is safe for concurrent use.
type Transcript struct {
	mu       sync.Mutex
	segments []string
}

// Append adds a finalized segment; blank segments are ignored.
func (t *Transcript) Append(segment string) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = append(t.segments, segment)
}

func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.segments, " ")
}

func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = nil
}
