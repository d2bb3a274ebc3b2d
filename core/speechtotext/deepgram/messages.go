package deepgram

import (
	"context"
	"encoding/json"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
)

func (s *TranscriptionClient) processMessage(ctx context.Context, msg []byte, callbacks callbacks) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}
		if msgResp.IsFinal {
			if len(transcript) > 0 {
				s.transcript.Append(transcript)
				s.unendedSegment = true
			}
			if msgResp.SpeechFinal {
				s.onSpeechEnded(callbacks)
			}
		} else if len(transcript) > 0 {
			callbacks.interimTranscriptCallback(strings.TrimSpace(s.transcript.String() + " " + transcript))
		}

	case api.TypeUtteranceEndResponse:
		var msgResp api.UtteranceEndResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
			return
		}

		if s.unendedSegment {
			s.onSpeechEnded(callbacks)
		}

	case api.TypeSpeechStartedResponse:
		var msgResp api.SpeechStartedResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
			return
		}

		s.unendedSegment = true
		callbacks.speechStartedCallback()
	}
}

// onSpeechEnded hands over the whole finalized transcript; it stays
// accumulated until ResetTranscript.
func (s *TranscriptionClient) onSpeechEnded(callbacks callbacks) {
	s.unendedSegment = false
	if transcript := s.transcript.String(); transcript != "" {
		callbacks.finalizedTranscriptCallback(transcript)
	}
	callbacks.speechEndedCallback()
}
