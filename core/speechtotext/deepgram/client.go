// Package deepgram streams microphone frames to Deepgram's live
// transcription API and accumulates the finalized transcript.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/justplayit/core/audio"
	"github.com/koscakluka/justplayit/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en-US"

	finishTimeout = 3 * time.Second
)

var (
	ErrMissingAPIKey       = errors.New("deepgram: api key not found")
	ErrAlreadyTranscribing = errors.New("deepgram: transcription already running")
)

type TranscriptionClient struct {
	apiKey    string
	listenURL string
	model     string
	language  string
	dialer    *websocket.Dialer

	connMu    sync.Mutex
	conn      *websocket.Conn
	lastMsgTs time.Time

	transcript speechtotext.Transcript
	// only touched by the reading goroutine
	unendedSegment bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ speechtotext.Transcriber = (*TranscriptionClient)(nil)

type ClientOption func(*TranscriptionClient)

// NewTranscriptionClient reads the API key from DEEPGRAM_API_KEY unless
// WithAPIKey is given.
func NewTranscriptionClient(opts ...ClientOption) *TranscriptionClient {
	client := &TranscriptionClient{
		apiKey:    os.Getenv("DEEPGRAM_API_KEY"),
		listenURL: defaultListenURL,
		model:     defaultModel,
		language:  defaultLanguage,
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) {
		c.apiKey = apiKey
	}
}

func WithListenURL(listenURL string) ClientOption {
	return func(c *TranscriptionClient) {
		c.listenURL = listenURL
	}
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		c.model = model
	}
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) {
		c.language = language
	}
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *TranscriptionClient) {
		c.dialer = dialer
	}
}

func (s *TranscriptionClient) SetUp(_ context.Context) error {
	if s.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (s *TranscriptionClient) StartTranscribing(ctx context.Context, frames <-chan audio.Frame, opts ...speechtotext.TranscriptionOption) (err error) {
	ctx, span := tracer.Start(ctx, "start transcribing")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	options := speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}
	if err := s.SetUp(ctx); err != nil {
		return err
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}
	span.SetAttributes(
		attribute.String("encoding", encoding.Format.Name()),
		attribute.Int("sample_rate", encoding.SampleRate),
	)

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done != nil {
		return ErrAlreadyTranscribing
	}

	callbacks, config := newCallbackConfig(options)
	conn, err := s.connectWebsocket(ctx, connectionOptions{
		sampleRate: encoding.SampleRate,
		channels:   encoding.Channels,
		encoding:   encoding.Format.Name(),

		detectSpeechStart:            config.shouldDetectSpeechStart,
		enhanceSpeechEndingDetection: config.shouldEnhanceSpeechEndingDetection,
		interimResults:               config.shouldRequestInterimResults,
	})
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.lastMsgTs = time.Now()
	s.connMu.Unlock()
	s.unendedSegment = false

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		defer s.clearRun(done)
		s.readAndProcessMessages(runCtx, conn, callbacks, options.EncodingInfo)
	}()
	go s.pumpFrames(runCtx, frames)

	return nil
}

// FinishTranscribing asks the service to flush and close the stream,
// then waits for the reader to drain. It is a no-op when not running.
func (s *TranscriptionClient) FinishTranscribing(ctx context.Context) error {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()
	if done == nil {
		return nil
	}
	defer cancel()

	stopErr := s.StopStream()

	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(finishTimeout):
	}
	s.closeConn()
	<-done

	if stopErr != nil && !errors.Is(stopErr, websocket.ErrCloseSent) {
		return stopErr
	}
	return nil
}

// clearRun forgets a run whose socket closed on its own, so a new one can
// be started without FinishTranscribing.
func (s *TranscriptionClient) clearRun(done chan struct{}) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done == done {
		s.cancel()
		s.cancel, s.done = nil, nil
	}
}

func (s *TranscriptionClient) FinalizedTranscript() string {
	return s.transcript.String()
}

func (s *TranscriptionClient) ResetTranscript() {
	s.transcript.Reset()
}

func (s *TranscriptionClient) pumpFrames(ctx context.Context, frames <-chan audio.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				if err := s.StopStream(); err != nil {
					logger.DebugContext(ctx, "failed to close deepgram stream", "error", err)
				}
				return
			}
			if err := s.SendAudio(frame.PCM); err != nil {
				logger.WarnContext(ctx, "failed to send audio", "error", err)
				return
			}
		}
	}
}

func (s *TranscriptionClient) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
