package listening

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/koscakluka/justplayit/core/events"
	"github.com/koscakluka/justplayit/core/music"
	"github.com/koscakluka/justplayit/core/recognition"
)

func recognitionResult(title, artist string) recognition.Result {
	return recognition.Result{Title: title, Artist: artist, Album: "The White Album"}
}

func emitMatch(t *testing.T, s *testSetup, result recognition.Result) {
	t.Helper()
	waitForCondition(t, 2*time.Second, "continuous recognition to start", func() bool {
		return s.recognizer.emit(result)
	})
}

func TestCooldownAcceptsOneOfTwoMatches(t *testing.T) {
	s := newTestSetup(t, WithCooldown(time.Hour))

	if err := s.coordinator.StartTimedRecognition(context.Background(), 0); err != nil {
		t.Fatalf("expected timed recognition to start, got %v", err)
	}
	emitMatch(t, s, recognitionResult("Blackbird", "The Beatles"))
	emitMatch(t, s, recognitionResult("Julia", "The Beatles"))

	waitForCondition(t, 2*time.Second, "both matches to be processed", func() bool {
		return len(s.events.ofKind(events.KindRecognitionMatched))+
			len(s.events.ofKind(events.KindRecognitionMatchSuppressed)) == 2
	})
	if got := len(s.events.ofKind(events.KindRecognitionMatched)); got != 1 {
		t.Fatalf("expected exactly one accepted match, got %d", got)
	}
	suppressed := s.events.ofKind(events.KindRecognitionMatchSuppressed)[0].(events.RecognitionMatchSuppressed)
	if suppressed.Reason != events.SuppressedByCooldown {
		t.Fatalf("expected cooldown suppression, got %q", suppressed.Reason)
	}
	if s.coordinator.State().CooldownUntil.IsZero() {
		t.Fatalf("expected a running cooldown")
	}
	if !s.coordinator.IsRecognitionActive() {
		t.Fatalf("expected cooldown not to end the recognition")
	}
}

func TestDuplicateMatchSuppressedAfterCooldown(t *testing.T) {
	s := newTestSetup(t, WithCooldown(20*time.Millisecond))

	if err := s.coordinator.StartTimedRecognition(context.Background(), 0); err != nil {
		t.Fatalf("expected timed recognition to start, got %v", err)
	}
	emitMatch(t, s, recognitionResult("Blackbird", "The Beatles"))
	waitForCondition(t, 2*time.Second, "first match", func() bool {
		return len(s.events.ofKind(events.KindRecognitionMatched)) == 1
	})
	s.waitForState(t, "cooldown to elapse", func(state State) bool { return state.CooldownUntil.IsZero() })

	emitMatch(t, s, recognitionResult("BLACKBIRD", "the beatles"))
	waitForCondition(t, 2*time.Second, "duplicate to be suppressed", func() bool {
		return len(s.events.ofKind(events.KindRecognitionMatchSuppressed)) == 1
	})
	suppressed := s.events.ofKind(events.KindRecognitionMatchSuppressed)[0].(events.RecognitionMatchSuppressed)
	if suppressed.Reason != events.SuppressedAsDuplicate {
		t.Fatalf("expected duplicate suppression, got %q", suppressed.Reason)
	}

	emitMatch(t, s, recognitionResult("Julia", "The Beatles"))
	waitForCondition(t, 2*time.Second, "second distinct match", func() bool {
		return len(s.events.ofKind(events.KindRecognitionMatched)) == 2
	})
}

func TestTimedRecognitionExpires(t *testing.T) {
	s := newTestSetup(t)

	if err := s.coordinator.StartTimedRecognition(context.Background(), 30*time.Millisecond); err != nil {
		t.Fatalf("expected timed recognition to start, got %v", err)
	}
	if state := s.coordinator.State(); state.Owner != TimedRecognition {
		t.Fatalf("expected listening(timed), got %s", state)
	}

	s.waitForState(t, "timer to end recognition", func(state State) bool { return state.Phase == PhaseIdle })
	waitForCondition(t, 2*time.Second, "continuous recognition to stop", func() bool {
		return s.recognizer.stopCalls.Load() == 1
	})
	waitForCondition(t, 2*time.Second, "recognition ended event", func() bool {
		return len(s.events.ofKind(events.KindRecognitionEnded)) == 1
	})
	ended := s.events.ofKind(events.KindRecognitionEnded)[0].(events.RecognitionEnded)
	if ended.Cancelled {
		t.Fatalf("expected expiry not to count as cancellation")
	}
	if got := s.device.stopCalls.Load(); got != 1 {
		t.Fatalf("expected the microphone released once, got %d", got)
	}
}

func TestStopContinuousRecognition(t *testing.T) {
	s := newTestSetup(t)
	ctx := context.Background()

	if err := s.coordinator.StartTimedRecognition(ctx, 0); err != nil {
		t.Fatalf("expected timed recognition to start, got %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if !s.coordinator.IsRecognitionActive() {
		t.Fatalf("expected continuous recognition to keep running without a duration")
	}

	for range 2 {
		if err := s.coordinator.StopContinuousRecognition(ctx); err != nil {
			t.Fatalf("expected stop to succeed, got %v", err)
		}
	}
	if s.coordinator.IsRecognitionActive() || s.coordinator.IsStreaming() {
		t.Fatalf("expected recognition to be stopped")
	}
}

func TestManualRecognitionWithoutMatchEnds(t *testing.T) {
	s := newTestSetup(t)
	s.recognizer.onceErr = recognition.ErrNoMatchFound

	if err := s.coordinator.StartManualRecognition(context.Background()); err != nil {
		t.Fatalf("expected manual recognition to start, got %v", err)
	}

	s.waitForState(t, "idle after failed recognition", func(state State) bool { return state.Phase == PhaseIdle })
	waitForCondition(t, 2*time.Second, "recognition failure event", func() bool {
		return len(s.events.ofKind(events.KindRecognitionFailed)) == 1
	})
	if got := s.device.stopCalls.Load(); got != 1 {
		t.Fatalf("expected the microphone released once, got %d", got)
	}
}

func TestFastFailureResumesAfterSlowPause(t *testing.T) {
	s := newTestSetup(t)
	s.playback.pauseDelay = 100 * time.Millisecond
	s.playback.playing.Store(true)
	s.recognizer.onceErr = recognition.ErrNoMatchFound

	if err := s.coordinator.StartManualRecognition(context.Background()); err != nil {
		t.Fatalf("expected manual recognition to start, got %v", err)
	}

	waitForCondition(t, 2*time.Second, "playback to resume", func() bool {
		return s.playback.resumeCalls.Load() == 1
	})
	if got := s.playback.callOrder(); !slices.Equal(got, []string{"pause", "resume"}) {
		t.Fatalf("expected pause before resume, got %v", got)
	}
	if !s.playback.IsPlaying() {
		t.Fatalf("expected playback to be playing after recognition ended")
	}
	s.waitForState(t, "published playing state", func(state State) bool {
		return state.Phase == PhaseIdle && state.Playing
	})
}

func TestFailedResumeReportsStoppedPlayback(t *testing.T) {
	s := newTestSetup(t, WithAutomaticListening(true))
	s.waitForState(t, "automatic listening", func(state State) bool {
		return state.Owner == AutomaticCommandListening && state.IsStreaming
	})
	s.playback.resumeErr = music.ErrNothingToResume
	s.playback.playing.Store(true)
	s.recognizer.onceErr = recognition.ErrNoMatchFound

	if err := s.coordinator.StartManualRecognition(context.Background()); err != nil {
		t.Fatalf("expected manual recognition to start, got %v", err)
	}

	waitForCondition(t, 2*time.Second, "resume attempt", func() bool {
		return s.playback.resumeCalls.Load() == 1
	})
	s.waitForState(t, "automatic listening after failed resume", func(state State) bool {
		return !state.Playing && state.Owner == AutomaticCommandListening && state.IsStreaming
	})
}
