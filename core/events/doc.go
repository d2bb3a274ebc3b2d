// Package events defines the typed listening and command event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - listening.*
//   - recognition.*
//   - playback.*
//   - command.*
//   - transcript.*
//
// listening events
//
//   - ListeningStateChanged (listening.state_changed): the microphone owner or
//     the coordinator phase changed; carries the new snapshot.
//   - ListeningAcquireFailed (listening.acquire_failed): a requestor could not
//     take the microphone; the prior state was kept.
//   - AutomaticListeningChanged (listening.automatic_changed): the automatic
//     listening setting was toggled.
//
// recognition events
//
//   - RecognitionStarted (recognition.started): a manual or timed session
//     holds the microphone.
//   - RecognitionMatched (recognition.matched): an accepted match, worth
//     keeping in history.
//   - RecognitionMatchSuppressed (recognition.match_suppressed): a match that
//     arrived during the cooldown window or repeated an earlier match of the
//     same session.
//   - RecognitionFailed (recognition.failed): the fingerprint engine gave up
//     or failed.
//   - RecognitionEnded (recognition.ended): the session released the
//     microphone; reports whether playback is being resumed.
//
// playback events
//
//   - PlaybackResumeRequested (playback.resume_requested): playback paused
//     for a recognition is being resumed.
//
// command events
//
//   - CommandResolved (command.resolved): a voice command produced a play or
//     search action.
//   - CommandFailed (command.failed): entity extraction failed for a voice
//     command.
//
// transcript events
//
//   - TranscriptFinalized (transcript.finalized): the transcriber finalized a
//     piece of speech while listening for commands.
package events
