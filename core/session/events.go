package session

import "encoding/json"

// Event is one normalized downlink event. Implementations form a closed set
// consumed exhaustively by the engine's run loop; anything a provider sends
// that does not map onto one of these is either dropped by the provider
// client or surfaced as Unknown.
type Event interface {
	sessionEvent()
}

// AudioChunk carries one chunk of model speech, PCM16 at SampleRate.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
}

// TextDelta carries an incremental piece of the model's textual reply.
type TextDelta struct {
	Text string
}

// InputTranscript carries a transcription delta for the user's speech.
// IsFinal marks the utterance as committed.
type InputTranscript struct {
	Text    string
	IsFinal bool
}

// FunctionCall asks the engine to execute a named tool and report back.
type FunctionCall struct {
	CallID string
	Name   string
	Args   json.RawMessage
}

// TurnComplete marks the end of the model's reply for the current turn.
type TurnComplete struct{}

// Unknown wraps a downlink message the provider client could not classify.
// Engines treat it as ignorable.
type Unknown struct {
	Raw json.RawMessage
}

func (AudioChunk) sessionEvent()      {}
func (TextDelta) sessionEvent()       {}
func (InputTranscript) sessionEvent() {}
func (FunctionCall) sessionEvent()    {}
func (TurnComplete) sessionEvent()    {}
func (Unknown) sessionEvent()         {}
