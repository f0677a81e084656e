package events

import "time"

const (
	// KindUserTurnStarted identifies detected speech opening a turn.
	KindUserTurnStarted Kind = "user_turn.started"
	// KindUserTranscriptUpdated identifies a user transcription delta.
	KindUserTranscriptUpdated Kind = "user_turn.transcript_updated"
	// KindUserTurnEnded identifies the end of the user's utterance.
	KindUserTurnEnded Kind = "user_turn.ended"
	// KindUserAudioCaptured identifies the captured utterance audio blob.
	KindUserAudioCaptured Kind = "user_turn.audio_captured"
)

// UserTurnStarted marks detected speech opening a turn.
type UserTurnStarted struct {
	Base
	TurnID    string
	StartedAt time.Time
}

// NewUserTurnStarted creates a user turn started event.
func NewUserTurnStarted(turnID string, startedAt time.Time) UserTurnStarted {
	return UserTurnStarted{Base: NewBase(KindUserTurnStarted), TurnID: turnID, StartedAt: startedAt}
}

// UserTranscriptUpdated carries a transcription delta for the user's speech.
type UserTranscriptUpdated struct {
	Base
	TurnID     string
	Transcript string
	IsFinal    bool
}

// NewUserTranscriptUpdated creates a user transcript update event.
func NewUserTranscriptUpdated(turnID, transcript string, isFinal bool) UserTranscriptUpdated {
	return UserTranscriptUpdated{Base: NewBase(KindUserTranscriptUpdated), TurnID: turnID, Transcript: transcript, IsFinal: isFinal}
}

// UserTurnEnded marks the end of the user's utterance.
type UserTurnEnded struct {
	Base
	TurnID  string
	EndedAt time.Time
}

// NewUserTurnEnded creates a user turn ended event.
func NewUserTurnEnded(turnID string, endedAt time.Time) UserTurnEnded {
	return UserTurnEnded{Base: NewBase(KindUserTurnEnded), TurnID: turnID, EndedAt: endedAt}
}

// UserAudioCaptured carries the captured utterance as a WAV blob. Only
// emitted when the capture clears the loudness gate.
type UserAudioCaptured struct {
	Base
	TurnID string
	WAV    []byte
}

// NewUserAudioCaptured creates a user audio captured event.
func NewUserAudioCaptured(turnID string, wav []byte) UserAudioCaptured {
	return UserAudioCaptured{Base: NewBase(KindUserAudioCaptured), TurnID: turnID, WAV: wav}
}
