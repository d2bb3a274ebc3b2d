// Package microphone owns the physical capture device and hands its audio out
// as a cancellable frame stream to a single consumer at a time.
package microphone

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/justplayit/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrPermissionDenied    = errors.New("microphone: permission denied")
	ErrHardwareUnavailable = errors.New("microphone: hardware unavailable")
	ErrInvalidFormat       = errors.New("microphone: invalid audio format")
	ErrAlreadyStreaming    = errors.New("microphone: already streaming")
)

const defaultFrameBuffer = 64

// Device is a capture client, e.g. the miniaudio or portaudio clients.
type Device interface {
	EncodingInfo() audio.EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

// PermissionFunc reports whether the user allowed microphone access.
type PermissionFunc func(ctx context.Context) (granted bool, err error)

type Source struct {
	device      Device
	permission  PermissionFunc
	frameBuffer int
	now         func() time.Time

	mu     sync.Mutex
	stream *Stream
}

type SourceOption func(*Source)

// WithPermission installs a permission check that runs before every acquire.
// Without one, access is assumed to be granted.
func WithPermission(permission PermissionFunc) SourceOption {
	return func(s *Source) { s.permission = permission }
}

// WithFrameBuffer sets how many frames may wait for the consumer before new
// frames are dropped.
func WithFrameBuffer(size int) SourceOption {
	return func(s *Source) {
		if size > 0 {
			s.frameBuffer = size
		}
	}
}

func WithClock(now func() time.Time) SourceOption {
	return func(s *Source) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSource(device Device, opts ...SourceOption) *Source {
	s := &Source{
		device:      device,
		frameBuffer: defaultFrameBuffer,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire starts capture and returns the stream for the single consumer.
// It fails with ErrAlreadyStreaming while a previous stream has not been
// released.
func (s *Source) Acquire(ctx context.Context) (*Stream, error) {
	ctx, span := tracer.Start(ctx, "acquire microphone")
	defer span.End()

	stream, err := s.acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("audio.sample_rate", stream.format.SampleRate),
		attribute.Int("audio.channels", stream.format.Channels),
	)
	return stream, nil
}

func (s *Source) acquire(ctx context.Context) (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return nil, ErrAlreadyStreaming
	}
	if s.device == nil {
		return nil, fmt.Errorf("%w: no capture device configured", ErrHardwareUnavailable)
	}

	if s.permission != nil {
		granted, err := s.permission(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: permission check failed: %w", ErrHardwareUnavailable, err)
		}
		if !granted {
			return nil, ErrPermissionDenied
		}
	}

	reported := s.device.EncodingInfo()
	format := reported.OrFallback()
	if format != reported {
		logger.WarnContext(ctx, "capture device reported unusable format, using fallback",
			"reported_sample_rate", reported.SampleRate,
			"reported_channels", reported.Channels,
			"sample_rate", format.SampleRate,
			"channels", format.Channels)
	}
	if format.BytesPerFrame() <= 0 {
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrInvalidFormat, format.Format.Name())
	}

	stream := newStream(s, format, s.frameBuffer)
	// Capture outlives the acquire call, so it must not inherit its deadline.
	if err := s.device.StartCapture(context.WithoutCancel(ctx), stream.push); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return nil, ErrPermissionDenied
		}
		return nil, fmt.Errorf("%w: %w", ErrHardwareUnavailable, err)
	}

	s.stream = stream
	return stream, nil
}

// Release stops the currently held stream, if any. Releasing an idle source
// is a no-op.
func (s *Source) Release() error {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.release()
}

// IsStreaming reports whether a stream is currently held.
func (s *Source) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

func (s *Source) detach(stream *Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == stream {
		s.stream = nil
	}
}
