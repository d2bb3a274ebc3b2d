package microphone

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/justplayit/core/audio"
)

// Stream is a push-based sequence of captured frames. Cancelling it releases
// the microphone; doing so more than once has no further effect.
type Stream struct {
	source     *Source
	format     audio.EncodingInfo
	acquiredAt time.Time

	frames chan audio.Frame
	done   chan struct{}

	mu     sync.Mutex
	closed bool

	dropped atomic.Int64

	releaseOnce sync.Once
	releaseErr  error
}

func newStream(source *Source, format audio.EncodingInfo, buffer int) *Stream {
	return &Stream{
		source:     source,
		format:     format,
		acquiredAt: source.now(),
		frames:     make(chan audio.Frame, buffer),
		done:       make(chan struct{}),
	}
}

// Frames is closed once the stream has been released.
func (st *Stream) Frames() <-chan audio.Frame { return st.frames }

// Done is closed once the stream has been released.
func (st *Stream) Done() <-chan struct{} { return st.done }

func (st *Stream) Format() audio.EncodingInfo { return st.format }
func (st *Stream) AcquiredAt() time.Time      { return st.acquiredAt }

// Dropped reports how many frames were discarded because the consumer fell
// behind.
func (st *Stream) Dropped() int64 { return st.dropped.Load() }

func (st *Stream) Cancel() {
	if err := st.release(); err != nil {
		logger.Warn("failed to release microphone", "error", err)
	}
}

func (st *Stream) release() error {
	st.releaseOnce.Do(func() {
		err := st.source.device.StopCapture()

		st.mu.Lock()
		st.closed = true
		close(st.frames)
		st.mu.Unlock()

		close(st.done)
		st.source.detach(st)

		if err != nil {
			st.releaseErr = fmt.Errorf("failed to stop capture: %w", err)
		}
	})
	return st.releaseErr
}

func (st *Stream) push(pcm []byte) {
	if len(pcm) == 0 {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}

	frame := audio.Frame{PCM: bytes.Clone(pcm), CapturedAt: st.source.now()}
	select {
	case st.frames <- frame:
	default:
		st.dropped.Add(1)
	}
}
