package listening

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/justplayit/core/events"
	"github.com/koscakluka/justplayit/core/microphone"
	"github.com/koscakluka/justplayit/core/recognition"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const stopContinuousTimeout = 5 * time.Second

type recognitionSession struct {
	id        uuid.UUID
	requestor Requestor
	gen       uint64
	cancel    context.CancelFunc
	span      trace.Span
	accepted  map[string]struct{}
}

func (c *Coordinator) requestRecognition(requestor Requestor, d time.Duration, reply chan<- error) {
	st := &c.control
	if c.recognizer == nil {
		c.respond(reply, ErrNoRecognizer)
		return
	}
	if st.recognitionActive() {
		c.respond(reply, ErrRecognitionActive)
		return
	}

	prior := NoRequestor
	if st.phase == PhaseListening && st.owner == AutomaticCommandListening {
		prior = AutomaticCommandListening
	}
	wasPlaying := st.playing || st.pendingResumes > 0 || (c.playback != nil && c.playback.IsPlaying())
	c.abandonAutomatic()

	st.phase, st.owner, st.prior = PhaseSuspended, NoRequestor, prior
	c.requestAcquire(&acquireRequest{
		requestor:  requestor,
		duration:   d,
		wasPlaying: wasPlaying,
	}, reply)
}

func (c *Coordinator) startRecognition(req *acquireRequest, stream *microphone.Stream) {
	st := &c.control
	st.phase, st.owner, st.prior = PhaseListening, req.requestor, NoRequestor
	st.stream = stream
	st.shouldResume = req.wasPlaying

	if req.wasPlaying && c.playback != nil {
		st.playing = false
		c.controlPlayback("pause playback", c.playback.Pause, c.pauseFinished)
	}

	ctx, cancel := context.WithCancel(c.baseCtx)
	session := &recognitionSession{
		id:        uuid.New(),
		requestor: req.requestor,
		gen:       st.gen,
		cancel:    cancel,
		accepted:  map[string]struct{}{},
	}
	ctx, session.span = tracer.Start(ctx, "recognize", trace.WithAttributes(
		attribute.String("recognition.session_id", session.id.String()),
		attribute.String("recognition.requestor", req.requestor.String()),
	))
	st.session = session
	c.emit(events.NewRecognitionStarted(session.id, req.requestor.String()))

	input := recognition.Input{Frames: stream.Frames(), Format: stream.Format()}
	recognizer := c.recognizer
	gen := session.gen

	switch req.requestor {
	case ManualRecognition:
		go func() {
			result, err := recognizer.RecognizeOnce(ctx, input)
			c.post(func() { c.recognizedOnce(gen, result, err) })
		}()

	case TimedRecognition:
		if req.duration > 0 {
			st.expiryTimer = time.AfterFunc(req.duration, func() {
				c.post(func() { c.recognitionExpired(gen) })
			})
		}
		go func() {
			err := recognizer.StartContinuous(ctx, input, func(result recognition.Result) {
				c.post(func() { c.matched(gen, result) })
			})
			if err != nil {
				c.post(func() { c.recognitionFailed(gen, err) })
			}
		}()
	}
}

func (c *Coordinator) currentSession(gen uint64) *recognitionSession {
	session := c.control.session
	if session == nil || session.gen != gen || c.control.gen != gen {
		return nil
	}
	return session
}

func (c *Coordinator) recognizedOnce(gen uint64, result recognition.Result, err error) {
	session := c.currentSession(gen)
	if session == nil {
		return
	}
	if err != nil {
		c.recognitionFailed(gen, err)
		return
	}
	c.acceptMatch(session, result)
	c.finishRecognition(false, false)
}

func (c *Coordinator) recognitionFailed(gen uint64, err error) {
	session := c.currentSession(gen)
	if session == nil {
		return
	}
	session.span.RecordError(err)
	session.span.SetStatus(codes.Error, err.Error())
	logger.Info("recognition failed", "session_id", session.id.String(), "error", err)
	c.emit(events.NewRecognitionFailed(session.id, err))
	c.finishRecognition(false, false)
}

func (c *Coordinator) recognitionExpired(gen uint64) {
	if c.currentSession(gen) == nil || c.control.owner != TimedRecognition {
		return
	}
	c.finishRecognition(false, false)
}

func (c *Coordinator) matched(gen uint64, result recognition.Result) {
	if session := c.currentSession(gen); session != nil {
		c.acceptMatch(session, result)
	}
}

// acceptMatch records result unless a cooldown is running or the session
// already accepted the same song. Every accepted match restarts the
// cooldown.
func (c *Coordinator) acceptMatch(session *recognitionSession, result recognition.Result) {
	st := &c.control
	requestorAttr := attribute.String("requestor", session.requestor.String())

	reason := events.SuppressionReason("")
	if !st.cooldownUntil.IsZero() {
		reason = events.SuppressedByCooldown
	} else if _, seen := session.accepted[result.Key()]; seen {
		reason = events.SuppressedAsDuplicate
	}
	if reason != "" {
		if c.suppressedMatches != nil {
			c.suppressedMatches.Add(c.baseCtx, 1, metric.WithAttributes(
				requestorAttr, attribute.String("reason", string(reason))))
		}
		c.emit(events.NewRecognitionMatchSuppressed(session.id, result, reason))
		return
	}

	session.accepted[result.Key()] = struct{}{}
	session.span.AddEvent("match accepted", trace.WithAttributes(
		attribute.String("recognition.key", result.Key()),
	))
	if c.acceptedMatches != nil {
		c.acceptedMatches.Add(c.baseCtx, 1, metric.WithAttributes(requestorAttr))
	}
	c.emit(events.NewRecognitionMatched(session.id, result))

	if c.cooldown <= 0 {
		return
	}
	if st.cooldownTimer != nil {
		st.cooldownTimer.Stop()
	}
	st.cooldownUntil = c.now().Add(c.cooldown)
	gen := session.gen
	st.cooldownTimer = time.AfterFunc(c.cooldown, func() {
		c.post(func() { c.cooldownElapsed(gen) })
	})
}

func (c *Coordinator) cooldownElapsed(gen uint64) {
	if c.currentSession(gen) == nil {
		return
	}
	c.control.cooldownUntil = time.Time{}
	c.control.cooldownTimer = nil
}

func (c *Coordinator) stopTimers() {
	st := &c.control
	if st.expiryTimer != nil {
		st.expiryTimer.Stop()
		st.expiryTimer = nil
	}
	if st.cooldownTimer != nil {
		st.cooldownTimer.Stop()
		st.cooldownTimer = nil
	}
	st.cooldownUntil = time.Time{}
}

// finishRecognition is the single completion path for manual and timed
// recognition, whether they completed, expired or were cancelled.
func (c *Coordinator) finishRecognition(cancelled, skipResume bool) {
	st := &c.control

	if st.phase == PhaseSuspended {
		st.gen++
		c.dropPending(ErrRecognitionCancelled)
		st.phase, st.prior = PhaseIdle, NoRequestor
		st.shouldResume = false
		c.evaluateAutomatic(nil)
		return
	}
	if st.phase != PhaseListening || !st.owner.isRecognition() {
		return
	}

	st.gen++
	requestor := st.owner
	session := st.session
	st.session = nil
	if session != nil {
		session.cancel()
		session.span.SetAttributes(attribute.Bool("recognition.cancelled", cancelled))
		if st.stream != nil {
			held := c.now().Sub(st.stream.AcquiredAt())
			session.span.SetAttributes(attribute.Int64("recognition.microphone_held_ms", held.Milliseconds()))
		}
		session.span.End()
	}
	if requestor == TimedRecognition {
		recognizer := c.recognizer
		goWorker(context.WithoutCancel(c.baseCtx), "stop continuous recognition", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, stopContinuousTimeout)
			defer cancel()
			recognizer.StopContinuous(ctx)
			return nil
		})
	}
	c.stopTimers()

	if st.stream != nil {
		st.stream.Cancel()
		st.stream = nil
	}

	resume := st.shouldResume && !skipResume
	st.shouldResume = false
	if resume {
		c.resumePlayback()
	}

	st.phase, st.owner = PhaseIdle, NoRequestor
	if session != nil {
		c.emit(events.NewRecognitionEnded(session.id, requestor.String(), cancelled, resume))
	}
	c.evaluateAutomatic(nil)
}

func (c *Coordinator) resumePlayback() {
	if c.playback == nil {
		return
	}
	c.control.pendingResumes++
	c.controlPlayback("resume playback", c.playback.Resume, c.resumeFinished)
	c.emit(events.NewPlaybackResumeRequested())
}

// controlPlayback queues a pause or resume behind the previous one so the
// player sees them in the order they were issued. done runs on the control
// goroutine with the outcome.
func (c *Coordinator) controlPlayback(name string, run func(context.Context) error, done func(error)) {
	st := &c.control
	previous := st.playbackTail
	tail := make(chan struct{})
	st.playbackTail = tail

	worker := panicSafeNamedWorker(name, run)
	ctx := context.WithoutCancel(c.baseCtx)
	go func() {
		defer close(tail)
		if previous != nil {
			<-previous
		}
		err := worker(ctx)
		if err != nil {
			logger.WarnContext(ctx, "playback control failed", "worker", name, "error", err)
		}
		c.post(func() { done(err) })
	}()
}

func (c *Coordinator) pauseFinished(err error) {
	if err == nil {
		return
	}
	st := &c.control
	st.playing = c.playback.IsPlaying()
	if st.playing {
		st.shouldResume = false
	}
}

func (c *Coordinator) resumeFinished(err error) {
	st := &c.control
	st.pendingResumes--
	st.playing = err == nil || c.playback.IsPlaying()
	c.evaluateAutomatic(nil)
}
