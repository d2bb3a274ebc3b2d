package events

import (
	"github.com/google/uuid"
	"github.com/koscakluka/justplayit/core/recognition"
)

const (
	// KindRecognitionStarted identifies the start of a recognition session.
	KindRecognitionStarted Kind = "recognition.started"
	// KindRecognitionMatched identifies accepted recognition matches.
	KindRecognitionMatched Kind = "recognition.matched"
	// KindRecognitionMatchSuppressed identifies matches dropped by cooldown or
	// duplicate detection.
	KindRecognitionMatchSuppressed Kind = "recognition.match_suppressed"
	// KindRecognitionFailed identifies recognition engine failures.
	KindRecognitionFailed Kind = "recognition.failed"
	// KindRecognitionEnded identifies the end of a recognition session.
	KindRecognitionEnded Kind = "recognition.ended"
)

// SuppressionReason explains why a match was not accepted.
type SuppressionReason string

const (
	SuppressedByCooldown  SuppressionReason = "cooldown"
	SuppressedAsDuplicate SuppressionReason = "duplicate"
)

// RecognitionStarted marks a recognition session taking the microphone.
type RecognitionStarted struct {
	Base
	SessionID uuid.UUID
	Requestor string
}

// NewRecognitionStarted creates a recognition started event.
func NewRecognitionStarted(sessionID uuid.UUID, requestor string) RecognitionStarted {
	return RecognitionStarted{Base: NewBase(KindRecognitionStarted), SessionID: sessionID, Requestor: requestor}
}

// RecognitionMatched carries an accepted match.
type RecognitionMatched struct {
	Base
	SessionID uuid.UUID
	Result    recognition.Result
}

// NewRecognitionMatched creates an accepted match event.
func NewRecognitionMatched(sessionID uuid.UUID, result recognition.Result) RecognitionMatched {
	return RecognitionMatched{Base: NewBase(KindRecognitionMatched), SessionID: sessionID, Result: result}
}

// RecognitionMatchSuppressed carries a match that was not accepted.
type RecognitionMatchSuppressed struct {
	Base
	SessionID uuid.UUID
	Result    recognition.Result
	Reason    SuppressionReason
}

// NewRecognitionMatchSuppressed creates a suppressed match event.
func NewRecognitionMatchSuppressed(sessionID uuid.UUID, result recognition.Result, reason SuppressionReason) RecognitionMatchSuppressed {
	return RecognitionMatchSuppressed{
		Base:      NewBase(KindRecognitionMatchSuppressed),
		SessionID: sessionID,
		Result:    result,
		Reason:    reason,
	}
}

// RecognitionFailed carries the recognition engine error.
type RecognitionFailed struct {
	Base
	SessionID uuid.UUID
	Err       error
}

// NewRecognitionFailed creates a recognition failure event.
func NewRecognitionFailed(sessionID uuid.UUID, err error) RecognitionFailed {
	return RecognitionFailed{Base: NewBase(KindRecognitionFailed), SessionID: sessionID, Err: err}
}

// RecognitionEnded marks the session releasing the microphone.
type RecognitionEnded struct {
	Base
	SessionID      uuid.UUID
	Requestor      string
	Cancelled      bool
	ResumePlayback bool
}

// NewRecognitionEnded creates a recognition ended event.
func NewRecognitionEnded(sessionID uuid.UUID, requestor string, cancelled, resumePlayback bool) RecognitionEnded {
	return RecognitionEnded{
		Base:           NewBase(KindRecognitionEnded),
		SessionID:      sessionID,
		Requestor:      requestor,
		Cancelled:      cancelled,
		ResumePlayback: resumePlayback,
	}
}
