package listening

import (
	"context"

	"github.com/koscakluka/justplayit/core/events"
	"github.com/koscakluka/justplayit/core/microphone"
	"github.com/koscakluka/justplayit/core/speechtotext"
)

// startCommandListening hands the stream to the transcriber; every
// finalized utterance is then resolved as a possible voice command.
func (c *Coordinator) startCommandListening(stream *microphone.Stream) {
	st := &c.control
	st.phase, st.owner, st.prior = PhaseListening, AutomaticCommandListening, NoRequestor
	st.stream = stream

	transcriber := c.transcriber
	if transcriber == nil {
		return
	}
	transcriber.ResetTranscript()

	ctx, cancel := context.WithCancel(c.baseCtx)
	st.pipelineCancel = cancel
	gen := st.gen
	opts := []speechtotext.TranscriptionOption{
		speechtotext.WithEncodingInfo(stream.Format()),
		speechtotext.WithFinalizedTranscriptCallback(c.transcriptFinalized),
	}

	goWorker(ctx, "start transcribing", func(ctx context.Context) error {
		err := transcriber.StartTranscribing(ctx, stream.Frames(), opts...)
		if err != nil {
			c.post(func() { c.commandListeningFailed(gen, err) })
		}
		return err
	})
}

// transcriptFinalized runs on the transcriber's goroutine.
func (c *Coordinator) transcriptFinalized(transcript string) {
	c.emit(events.NewTranscriptFinalized(transcript))
	if c.listener == nil {
		return
	}

	listener := c.listener
	// Runs past the end of the listening session.
	goWorker(c.baseCtx, "handle finalized transcript", func(ctx context.Context) error {
		listener.HandleFinalized(ctx)
		return nil
	})
}

func (c *Coordinator) commandListeningFailed(gen uint64, err error) {
	st := &c.control
	if st.gen != gen || st.owner != AutomaticCommandListening {
		return
	}
	logger.Warn("command listening failed", "error", err)
	c.emit(events.NewListeningAcquireFailed(AutomaticCommandListening.String(), err))
	c.stopCommandListening()
	st.automaticBlocked = true
}

func (c *Coordinator) stopCommandListening() {
	st := &c.control
	if st.phase != PhaseListening || st.owner != AutomaticCommandListening {
		return
	}
	st.gen++

	if st.pipelineCancel != nil {
		st.pipelineCancel()
		st.pipelineCancel = nil
	}
	if st.stream != nil {
		st.stream.Cancel()
		st.stream = nil
	}
	if transcriber := c.transcriber; transcriber != nil {
		goWorker(context.WithoutCancel(c.baseCtx), "finish transcribing", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, transcriberFinishTimeout)
			defer cancel()
			return transcriber.FinishTranscribing(ctx)
		})
	}

	st.phase, st.owner = PhaseIdle, NoRequestor
}
