package listening

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/justplayit/core/audio"
	"github.com/koscakluka/justplayit/core/entities"
	"github.com/koscakluka/justplayit/core/events"
	"github.com/koscakluka/justplayit/core/microphone"
	"github.com/koscakluka/justplayit/core/music"
	"github.com/koscakluka/justplayit/core/recognition"
	"github.com/koscakluka/justplayit/core/speechtotext"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

type testDevice struct {
	startCalls atomic.Int32
	stopCalls  atomic.Int32
	failNext   atomic.Bool
	// gate, when set, blocks StartCapture until it is closed.
	gate chan struct{}
}

func (d *testDevice) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (d *testDevice) StartCapture(context.Context, func([]byte)) error {
	d.startCalls.Add(1)
	if d.gate != nil {
		<-d.gate
	}
	if d.failNext.CompareAndSwap(true, false) {
		return errors.New("device busy")
	}
	return nil
}

func (d *testDevice) StopCapture() error {
	d.stopCalls.Add(1)
	return nil
}

type testRecognizer struct {
	mu      sync.Mutex
	onMatch func(recognition.Result)

	once          chan recognition.Result
	onceErr       error
	lateResult    bool
	stopCalls     atomic.Int32
	continuousErr error
}

func newTestRecognizer() *testRecognizer {
	return &testRecognizer{once: make(chan recognition.Result, 1)}
}

func (r *testRecognizer) RecognizeOnce(ctx context.Context, _ recognition.Input) (recognition.Result, error) {
	if r.onceErr != nil {
		return recognition.Result{}, r.onceErr
	}
	select {
	case result := <-r.once:
		return result, nil
	case <-ctx.Done():
		if r.lateResult {
			return recognition.Result{Title: "Late"}, nil
		}
		return recognition.Result{}, ctx.Err()
	}
}

func (r *testRecognizer) StartContinuous(_ context.Context, _ recognition.Input, onMatch func(recognition.Result)) error {
	if r.continuousErr != nil {
		return r.continuousErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMatch = onMatch
	return nil
}

func (r *testRecognizer) StopContinuous(context.Context) {
	r.stopCalls.Add(1)
}

func (r *testRecognizer) emit(result recognition.Result) bool {
	r.mu.Lock()
	onMatch := r.onMatch
	r.mu.Unlock()
	if onMatch == nil {
		return false
	}
	onMatch(result)
	return true
}

type testPlayback struct {
	playing     atomic.Bool
	pauseCalls  atomic.Int32
	resumeCalls atomic.Int32

	pauseDelay time.Duration
	resumeErr  error

	mu    sync.Mutex
	calls []string
}

func (p *testPlayback) IsPlaying() bool { return p.playing.Load() }

func (p *testPlayback) Pause(context.Context) error {
	if p.pauseDelay > 0 {
		time.Sleep(p.pauseDelay)
	}
	p.record("pause")
	p.pauseCalls.Add(1)
	p.playing.Store(false)
	return nil
}

func (p *testPlayback) Resume(context.Context) error {
	p.record("resume")
	p.resumeCalls.Add(1)
	if p.resumeErr != nil {
		return p.resumeErr
	}
	p.playing.Store(true)
	return nil
}

func (p *testPlayback) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *testPlayback) callOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type testTranscriber struct {
	mu          sync.Mutex
	transcript  string
	onFinalized func(string)

	startCalls  atomic.Int32
	finishCalls atomic.Int32
	resetCalls  atomic.Int32
	startErr    error
}

var _ speechtotext.Transcriber = (*testTranscriber)(nil)

func (s *testTranscriber) SetUp(context.Context) error { return nil }

func (s *testTranscriber) StartTranscribing(_ context.Context, _ <-chan audio.Frame, opts ...speechtotext.TranscriptionOption) error {
	s.startCalls.Add(1)
	if s.startErr != nil {
		return s.startErr
	}
	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	s.mu.Lock()
	s.onFinalized = options.FinalizedTranscriptCallback
	s.mu.Unlock()
	return nil
}

func (s *testTranscriber) FinishTranscribing(context.Context) error {
	s.finishCalls.Add(1)
	return nil
}

func (s *testTranscriber) FinalizedTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

func (s *testTranscriber) ResetTranscript() {
	s.resetCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = ""
}

// speak finalizes transcript as if the user just said it.
func (s *testTranscriber) speak(transcript string) bool {
	s.mu.Lock()
	s.transcript = transcript
	onFinalized := s.onFinalized
	s.mu.Unlock()
	if onFinalized == nil {
		return false
	}
	onFinalized(transcript)
	return true
}

type testExtractor struct {
	result entities.Entities
}

func (e testExtractor) Extract(context.Context, string) (entities.Entities, error) {
	return e.result, nil
}

type testProvider struct {
	playCalls   atomic.Int32
	searchCalls atomic.Int32
}

func (p *testProvider) Play(_ context.Context, artist, title string) (music.Track, error) {
	p.playCalls.Add(1)
	return music.Track{ID: "1", Artist: artist, Title: title}, nil
}

func (p *testProvider) Search(context.Context, string) ([]music.Track, error) {
	p.searchCalls.Add(1)
	return nil, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func recordEvents(t *testing.T, c *Coordinator) *eventRecorder {
	t.Helper()
	recorder := &eventRecorder{}
	ch, unsubscribe := c.Subscribe(256)
	t.Cleanup(unsubscribe)
	go func() {
		for event := range ch {
			recorder.mu.Lock()
			recorder.events = append(recorder.events, event)
			recorder.mu.Unlock()
		}
	}()
	return recorder
}

func (r *eventRecorder) ofKind(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matching []events.Event
	for _, event := range r.events {
		if event.Kind() == kind {
			matching = append(matching, event)
		}
	}
	return matching
}

type testSetup struct {
	coordinator *Coordinator
	device      *testDevice
	source      *microphone.Source
	recognizer  *testRecognizer
	playback    *testPlayback
	transcriber *testTranscriber
	events      *eventRecorder
}

func newTestSetup(t *testing.T, opts ...CoordinatorOption) *testSetup {
	t.Helper()
	return newTestSetupWithDevice(t, &testDevice{}, nil, opts...)
}

func newTestSetupWithDevice(t *testing.T, device *testDevice, sourceOpts []microphone.SourceOption, opts ...CoordinatorOption) *testSetup {
	t.Helper()

	setup := &testSetup{
		device:      device,
		source:      microphone.NewSource(device, sourceOpts...),
		recognizer:  newTestRecognizer(),
		playback:    &testPlayback{},
		transcriber: &testTranscriber{},
	}
	allOpts := append([]CoordinatorOption{
		WithRecognizer(setup.recognizer),
		WithPlayback(setup.playback),
		WithTranscriber(setup.transcriber),
	}, opts...)

	setup.coordinator = NewCoordinator(setup.source, allOpts...)
	setup.events = recordEvents(t, setup.coordinator)
	if err := setup.coordinator.Start(context.Background()); err != nil {
		t.Fatalf("expected coordinator to start, got %v", err)
	}
	t.Cleanup(func() { setup.coordinator.Close() })
	return setup
}

func (s *testSetup) waitForState(t *testing.T, description string, condition func(State) bool) {
	t.Helper()
	waitForCondition(t, 2*time.Second, description, func() bool {
		return condition(s.coordinator.State())
	})
}
