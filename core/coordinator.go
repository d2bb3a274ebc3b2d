// Package listening arbitrates exclusive use of the microphone between
// automatic voice command listening and song recognition, and keeps both
// in step with music playback.
package listening

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/justplayit/core/commands"
	"github.com/koscakluka/justplayit/core/events"
	"github.com/koscakluka/justplayit/core/microphone"
	"github.com/koscakluka/justplayit/core/music"
	"github.com/koscakluka/justplayit/core/recognition"
	"github.com/koscakluka/justplayit/core/speechtotext"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrClosed               = errors.New("listening: coordinator closed")
	ErrNotStarted           = errors.New("listening: coordinator not started")
	ErrRecognitionActive    = errors.New("listening: recognition already active")
	ErrRecognitionCancelled = errors.New("listening: recognition cancelled")
	ErrNoRecognizer         = errors.New("listening: no recognizer configured")
)

const inboxCapacity = 16

// AudioSource hands out the microphone to one consumer at a time.
type AudioSource interface {
	Acquire(ctx context.Context) (*microphone.Stream, error)
}

// Coordinator owns the microphone on behalf of its requestors. All state
// transitions run on a single control goroutine; public methods post to it
// and wait for the outcome.
type Coordinator struct {
	source      AudioSource
	recognizer  recognition.Recognizer
	transcriber speechtotext.Transcriber
	resolver    *commands.Resolver
	listener    *commands.Listener
	playback    music.Playback

	cooldown          time.Duration
	now               func() time.Time
	automaticEnabled  bool
	eventHandlers     []func(events.Event)
	onSettingsChanged func(bool)

	inbox   chan func()
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	closed    atomic.Bool

	baseCtx    context.Context
	cancelBase context.CancelFunc

	snapshot  atomic.Pointer[State]
	published State
	emitter   *eventEmitter

	acceptedMatches   metric.Int64Counter
	suppressedMatches metric.Int64Counter

	// control is only touched by the control goroutine.
	control controlState
}

func NewCoordinator(source AudioSource, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		source:   source,
		cooldown: DefaultCooldown,
		now:      time.Now,
		inbox:    make(chan func(), inboxCapacity),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
		baseCtx:  context.Background(),
		emitter:  newEventEmitter(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.resolver != nil && c.transcriber != nil {
		c.listener = commands.NewListener(c.resolver, c.transcriber,
			commands.WithResolutionHandler(func(_ context.Context, resolution *commands.Resolution) {
				c.emitter.emit(events.NewCommandResolved(*resolution))
			}),
			commands.WithErrorHandler(func(_ context.Context, err error) {
				c.emitter.emit(events.NewCommandFailed(err))
			}),
		)
	}

	var err error
	if c.acceptedMatches, err = meter.Int64Counter("listening.recognition.matches.accepted",
		metric.WithDescription("Recognition matches accepted into history")); err != nil {
		logger.Warn("failed to create accepted matches counter", "error", err)
	}
	if c.suppressedMatches, err = meter.Int64Counter("listening.recognition.matches.suppressed",
		metric.WithDescription("Recognition matches dropped by cooldown or duplicate detection")); err != nil {
		logger.Warn("failed to create suppressed matches counter", "error", err)
	}

	c.control.automaticEnabled = c.automaticEnabled
	c.snapshot.Store(&State{AutomaticListeningEnabled: c.automaticEnabled})
	return c
}

// Start runs the control loop until ctx is done or Close is called, and
// starts automatic listening when it is enabled and eligible.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.startOnce.Do(func() {
		c.baseCtx, c.cancelBase = context.WithCancel(ctx)

		if c.transcriber != nil {
			if err := c.transcriber.SetUp(ctx); err != nil {
				logger.WarnContext(ctx, "transcriber is not usable, command listening will fail", "error", err)
			}
		}
		if c.playback != nil {
			c.control.playing = c.playback.IsPlaying()
		}
		for _, handler := range c.eventHandlers {
			ch, _ := c.emitter.subscribe(defaultSubscriptionBuffer)
			go func() {
				for event := range ch {
					handler(event)
				}
			}()
		}

		c.publish()
		c.started.Store(true)
		go c.run()
		c.post(func() { c.evaluateAutomatic(nil) })
	})
	return nil
}

// Close stops every consumer, releases the microphone and ends all
// subscriptions. Playback is never resumed on close.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeCh)
		if !c.started.Load() {
			c.emitter.close()
			close(c.done)
		}
	})
	<-c.done
	return nil
}

// Subscribe returns a stream of coordinator events. Slow subscribers lose
// events rather than block the coordinator.
func (c *Coordinator) Subscribe(buffer int) (<-chan events.Event, func()) {
	return c.emitter.subscribe(buffer)
}

// State returns the snapshot published after the last committed transition.
func (c *Coordinator) State() State { return *c.snapshot.Load() }

// IsListening reports whether some requestor holds a streaming microphone.
func (c *Coordinator) IsListening() bool { return c.State().IsListening() }

// IsRecognitionActive reports whether a manual or timed recognition is
// taking or holding the microphone.
func (c *Coordinator) IsRecognitionActive() bool { return c.State().IsRecognitionActive() }

// IsAutomaticListeningEnabled reports the automatic listening setting.
func (c *Coordinator) IsAutomaticListeningEnabled() bool {
	return c.State().AutomaticListeningEnabled
}

// IsStreaming reports whether microphone frames are flowing.
func (c *Coordinator) IsStreaming() bool { return c.State().IsStreaming }

// EnableAutomaticListening turns the setting on and waits for the
// microphone when listening can start right away. An explicit enable also
// retries after an earlier permission or pipeline failure.
func (c *Coordinator) EnableAutomaticListening(ctx context.Context) error {
	return c.do(ctx, c.enableAutomatic)
}

func (c *Coordinator) DisableAutomaticListening(ctx context.Context) error {
	return c.do(ctx, func(reply chan<- error) {
		c.disableAutomatic()
		c.respond(reply, nil)
	})
}

// StartManualRecognition takes the microphone for a single recognition,
// pausing playback while it runs. It returns once the microphone is held.
func (c *Coordinator) StartManualRecognition(ctx context.Context) error {
	return c.do(ctx, func(reply chan<- error) {
		c.requestRecognition(ManualRecognition, 0, reply)
	})
}

// StartTimedRecognition recognizes continuously for d, or until stopped
// when d is zero.
func (c *Coordinator) StartTimedRecognition(ctx context.Context, d time.Duration) error {
	return c.do(ctx, func(reply chan<- error) {
		c.requestRecognition(TimedRecognition, max(d, 0), reply)
	})
}

// StopContinuousRecognition ends a timed recognition as if its timer fired.
func (c *Coordinator) StopContinuousRecognition(ctx context.Context) error {
	return c.do(ctx, func(reply chan<- error) {
		if c.control.owner == TimedRecognition || c.control.pendingRecognition() == TimedRecognition {
			c.finishRecognition(false, false)
		}
		c.respond(reply, nil)
	})
}

// CancelRecognition stops any recognition. With skipResume playback stays
// paused even if the recognition paused it. Cancelling twice is harmless.
func (c *Coordinator) CancelRecognition(ctx context.Context, skipResume bool) error {
	return c.do(ctx, func(reply chan<- error) {
		c.finishRecognition(true, skipResume)
		c.respond(reply, nil)
	})
}

// BeforePlayback is meant as the resolver's before-playback hook: a voice
// command that starts music ends any recognition without resuming.
func (c *Coordinator) BeforePlayback(ctx context.Context) {
	if err := c.CancelRecognition(ctx, true); err != nil && !errors.Is(err, ErrClosed) {
		logger.WarnContext(ctx, "failed to cancel recognition before playback", "error", err)
	}
}

func (c *Coordinator) PlaybackStarted(ctx context.Context) error {
	return c.do(ctx, func(reply chan<- error) {
		c.playbackStarted()
		c.respond(reply, nil)
	})
}

func (c *Coordinator) PlaybackStopped(ctx context.Context) error {
	return c.do(ctx, func(reply chan<- error) {
		c.playbackStopped()
		c.respond(reply, nil)
	})
}

// SetMicrophonePermission records the user's decision. Granting access
// re-evaluates automatic listening; revoking it stops automatic listening.
func (c *Coordinator) SetMicrophonePermission(ctx context.Context, granted bool) error {
	return c.do(ctx, func(reply chan<- error) {
		c.setPermission(granted)
		c.respond(reply, nil)
	})
}

func (c *Coordinator) run() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.inbox:
			fn()
			c.publish()
			c.flushReplies()
		case <-c.closeCh:
			c.shutdown()
			return
		case <-c.baseCtx.Done():
			c.shutdown()
			return
		}
	}
}

// do runs fn on the control goroutine. fn must respond exactly once,
// possibly later from another message.
func (c *Coordinator) do(ctx context.Context, fn func(reply chan<- error)) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.started.Load() {
		return ErrNotStarted
	}

	reply := make(chan error, 1)
	select {
	case c.inbox <- func() { fn(reply) }:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn for the control goroutine. It reports false once the
// coordinator has stopped.
func (c *Coordinator) post(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) publish() {
	st := &c.control
	state := State{
		Phase:                            st.phase,
		Owner:                            st.owner,
		Prior:                            st.prior,
		IsStreaming:                      st.stream != nil,
		CooldownUntil:                    st.cooldownUntil,
		ShouldResumePlaybackAfterRelease: st.shouldResume,
		AutomaticListeningEnabled:        st.automaticEnabled,
		PermissionDenied:                 st.permissionDenied,
		Playing:                          st.playing,
	}
	c.snapshot.Store(&state)

	previous := c.published
	c.published = state
	if previous.Phase != state.Phase || previous.Owner != state.Owner ||
		previous.Prior != state.Prior || previous.IsStreaming != state.IsStreaming {
		owner := state.Owner
		if state.Phase == PhaseSuspended {
			owner = state.Prior
		}
		c.emitter.emit(events.NewListeningStateChanged(state.Phase.String(), owner.String(), state.IsStreaming))
	}
}

func (c *Coordinator) emit(event events.Event) {
	c.emitter.emit(event)
}

func (c *Coordinator) shutdown() {
	c.finishRecognition(true, true)
	if c.control.pending != nil {
		c.control.gen++
		c.dropPending(ErrClosed)
	}
	c.stopCommandListening()
	c.stopTimers()
	c.publish()
	c.flushReplies()

	if c.cancelBase != nil {
		c.cancelBase()
	}
	c.emitter.close()
}
