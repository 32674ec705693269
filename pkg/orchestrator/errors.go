package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrTranscriptionFailed is returned when the STT provider fails
	ErrTranscriptionFailed = errors.New("speech-to-text transcription failed")

	// ErrDialogueFailed is returned when the dialogue engine fails
	ErrDialogueFailed = errors.New("dialogue engine inference failed")

	// ErrSynthesisFailed is returned when TTS fails for one or more reply segments
	ErrSynthesisFailed = errors.New("text-to-speech synthesis failed")

	// ErrNilProvider is returned when a required provider is nil
	ErrNilProvider = errors.New("required provider is nil")

	// ErrSessionNotFound is returned for lookups of unknown or closed sessions
	ErrSessionNotFound = errors.New("session not found")

	// ErrCallClosed is returned when audio is offered to a call that is shutting down
	ErrCallClosed = errors.New("call is closed")

	// ErrTransport is returned for malformed frames and failed writes on the media transport
	ErrTransport = errors.New("media transport failure")
)

// DuplicateSessionError is returned when a session id is already registered.
type DuplicateSessionError struct {
	ID string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("session %q already exists", e.ID)
}
