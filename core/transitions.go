package listening

import (
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/justplayit/core/events"
	"github.com/koscakluka/justplayit/core/microphone"
)

type controlState struct {
	phase  Phase
	owner  Requestor
	prior  Requestor
	stream *microphone.Stream

	// gen invalidates every asynchronous completion issued before it
	// changed.
	gen       uint64
	pending   *acquireRequest
	acquiring bool

	automaticEnabled bool
	permissionDenied bool
	// automaticBlocked holds automatic listening back after a failure until
	// something external changes.
	automaticBlocked bool
	playing          bool
	// pendingResumes counts resumes issued by the coordinator that have not
	// completed yet.
	pendingResumes int
	// playbackTail closes when the last queued pause or resume has run.
	playbackTail chan struct{}

	shouldResume  bool
	cooldownUntil time.Time
	cooldownTimer *time.Timer
	expiryTimer   *time.Timer

	session        *recognitionSession
	pipelineCancel func()

	replies []func()
}

type acquireRequest struct {
	gen        uint64
	requestor  Requestor
	duration   time.Duration
	wasPlaying bool
	replies    []chan<- error
}

func (st *controlState) pendingRecognition() Requestor {
	if st.pending == nil || !st.pending.requestor.isRecognition() {
		return NoRequestor
	}
	return st.pending.requestor
}

func (st *controlState) recognitionActive() bool {
	return st.phase == PhaseSuspended || (st.phase == PhaseListening && st.owner.isRecognition())
}

func (st *controlState) automaticEligible() bool {
	return st.automaticEnabled &&
		!st.permissionDenied &&
		!st.automaticBlocked &&
		!st.playing &&
		st.pendingResumes == 0 &&
		st.phase == PhaseIdle
}

func (c *Coordinator) replyAll(req *acquireRequest, err error) {
	for _, reply := range req.replies {
		c.respond(reply, err)
	}
	req.replies = nil
}

// respond delivers err once the current transition has been published, so
// callers observe the state their call produced.
func (c *Coordinator) respond(reply chan<- error, err error) {
	c.control.replies = append(c.control.replies, func() { reply <- err })
}

func (c *Coordinator) flushReplies() {
	replies := c.control.replies
	c.control.replies = nil
	for _, reply := range replies {
		reply()
	}
}

func (c *Coordinator) enableAutomatic(reply chan<- error) {
	st := &c.control
	st.permissionDenied = false
	st.automaticBlocked = false
	if !st.automaticEnabled {
		st.automaticEnabled = true
		c.settingsChanged(true)
	}
	c.evaluateAutomatic(reply)
}

func (c *Coordinator) disableAutomatic() {
	st := &c.control
	if st.automaticEnabled {
		st.automaticEnabled = false
		c.settingsChanged(false)
	}
	c.abandonAutomatic()
}

func (c *Coordinator) settingsChanged(enabled bool) {
	c.emit(events.NewAutomaticListeningChanged(enabled))
	if c.onSettingsChanged != nil {
		c.onSettingsChanged(enabled)
	}
}

// evaluateAutomatic starts automatic listening when it is eligible. reply,
// if given, receives the acquire outcome or nil when nothing is started.
func (c *Coordinator) evaluateAutomatic(reply chan<- error) {
	st := &c.control
	if !st.automaticEligible() {
		if reply != nil {
			c.respond(reply, nil)
		}
		return
	}

	if st.pending != nil {
		if reply != nil {
			st.pending.replies = append(st.pending.replies, reply)
		}
		return
	}
	c.requestAcquire(&acquireRequest{requestor: AutomaticCommandListening}, reply)
}

// abandonAutomatic drops a pending automatic acquire and stops automatic
// listening if it holds the microphone.
func (c *Coordinator) abandonAutomatic() {
	st := &c.control
	if st.pending != nil && st.pending.requestor == AutomaticCommandListening {
		st.gen++
		c.dropPending(nil)
	}
	c.stopCommandListening()
}

func (c *Coordinator) requestAcquire(req *acquireRequest, reply chan<- error) {
	st := &c.control
	st.gen++
	req.gen = st.gen
	if reply != nil {
		req.replies = append(req.replies, reply)
	}
	st.pending = req
	c.launchAcquire()
}

// launchAcquire starts the pending acquire unless another one is still in
// flight; the source only serves one at a time.
func (c *Coordinator) launchAcquire() {
	st := &c.control
	if st.pending == nil || st.acquiring {
		return
	}
	st.acquiring = true

	gen := st.pending.gen
	source := c.source
	ctx := c.baseCtx
	go func() {
		var stream *microphone.Stream
		var err error
		if source == nil {
			err = fmt.Errorf("%w: no audio source configured", microphone.ErrHardwareUnavailable)
		} else {
			stream, err = source.Acquire(ctx)
		}

		if !c.post(func() { c.acquireCompleted(gen, stream, err) }) && stream != nil {
			stream.Cancel()
		}
	}()
}

func (c *Coordinator) dropPending(err error) {
	st := &c.control
	if st.pending == nil {
		return
	}
	c.replyAll(st.pending, err)
	st.pending = nil
}

func (c *Coordinator) acquireCompleted(gen uint64, stream *microphone.Stream, err error) {
	st := &c.control
	st.acquiring = false

	req := st.pending
	if req == nil || req.gen != gen {
		if stream != nil {
			stream.Cancel()
		}
		c.launchAcquire()
		return
	}
	st.pending = nil

	if err != nil {
		c.acquireFailed(req, err)
		return
	}

	switch req.requestor {
	case AutomaticCommandListening:
		// Playback may have started while the acquire was in flight.
		if !st.automaticEligible() {
			stream.Cancel()
			c.replyAll(req, nil)
			return
		}
		c.startCommandListening(stream)
	default:
		c.startRecognition(req, stream)
	}
	c.replyAll(req, nil)
}

func (c *Coordinator) acquireFailed(req *acquireRequest, err error) {
	st := &c.control
	if errors.Is(err, microphone.ErrPermissionDenied) {
		st.permissionDenied = true
	}
	if errors.Is(err, microphone.ErrAlreadyStreaming) {
		logger.Error("microphone still held by a previous owner", "requestor", req.requestor.String())
	} else {
		logger.Warn("failed to acquire microphone", "requestor", req.requestor.String(), "error", err)
	}
	c.emit(events.NewListeningAcquireFailed(req.requestor.String(), err))

	if req.requestor.isRecognition() {
		st.phase, st.prior = PhaseIdle, NoRequestor
		st.shouldResume = false
		c.replyAll(req, err)
		c.evaluateAutomatic(nil)
		return
	}

	st.automaticBlocked = true
	c.replyAll(req, err)
}

func (c *Coordinator) playbackStarted() {
	st := &c.control
	st.playing = true
	c.abandonAutomatic()
	if st.recognitionActive() {
		c.finishRecognition(true, true)
	}
}

func (c *Coordinator) playbackStopped() {
	st := &c.control
	st.playing = false
	st.automaticBlocked = false
	c.evaluateAutomatic(nil)
}

func (c *Coordinator) setPermission(granted bool) {
	st := &c.control
	st.permissionDenied = !granted
	if !granted {
		c.abandonAutomatic()
		return
	}
	st.automaticBlocked = false
	c.evaluateAutomatic(nil)
}
