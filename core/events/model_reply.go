package events

const (
	// KindModelTextDelta identifies a streamed reply text piece.
	KindModelTextDelta Kind = "model_reply.text_delta"
	// KindModelAudioFrame identifies synthesized reply audio.
	KindModelAudioFrame Kind = "model_reply.audio_frame"
	// KindTurnFinalized identifies emission of the completed-turn record.
	KindTurnFinalized Kind = "model_reply.turn_finalized"
)

// ModelTextDelta carries a streamed piece of the model's textual reply.
type ModelTextDelta struct {
	Base
	TurnID string
	Delta  string
}

// NewModelTextDelta creates a model text delta event.
func NewModelTextDelta(turnID, delta string) ModelTextDelta {
	return ModelTextDelta{Base: NewBase(KindModelTextDelta), TurnID: turnID, Delta: delta}
}

// ModelAudioFrame carries one chunk of synthesized reply audio.
type ModelAudioFrame struct {
	Base
	TurnID     string
	Samples    []int16
	SampleRate int
}

// NewModelAudioFrame creates a model audio frame event.
func NewModelAudioFrame(turnID string, samples []int16, sampleRate int) ModelAudioFrame {
	return ModelAudioFrame{Base: NewBase(KindModelAudioFrame), TurnID: turnID, Samples: samples, SampleRate: sampleRate}
}

// TurnFinalized marks the assembled exchange leaving the engine.
type TurnFinalized struct {
	Base
	TurnID string
}

// NewTurnFinalized creates a turn finalized event.
func NewTurnFinalized(turnID string) TurnFinalized {
	return TurnFinalized{Base: NewBase(KindTurnFinalized), TurnID: turnID}
}
