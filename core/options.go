package engine

import (
	"context"
	"time"

	"github.com/voxboard/voxboard-core/core/audio"
	"github.com/voxboard/voxboard-core/core/events"
	"github.com/voxboard/voxboard-core/core/session"
)

type EngineOption func(*Engine)

// AudioInput is a capture device client. Stream delivers PCM16 frames at the
// client's encoding rate until the context ends.
type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	Close()
}

// AudioInputFine is implemented by capture clients with explicit start/stop
// controls.
type AudioInputFine interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

func WithAudioInput(client AudioInput) EngineOption {
	return func(e *Engine) { e.audioInput.Set(client) }
}

// AudioOutput is a playback device client. SendAudio appends PCM16 bytes to
// the device buffer.
type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
}

func WithAudioOutput(client AudioOutput) EngineOption {
	return func(e *Engine) { e.audioOutput.Set(client) }
}

func WithSessionTransport(transport session.Transport) EngineOption {
	return func(e *Engine) { e.transport = transport }
}

func WithCanvasController(canvas CanvasController) EngineOption {
	return func(e *Engine) { e.canvas = canvas }
}

// WithIntentHandler wires the delegated board-planning collaborator.
func WithIntentHandler(handler IntentHandler) EngineOption {
	return func(e *Engine) { e.intent = handler }
}

func WithSegmenterConfig(config SegmenterConfig) EngineOption {
	return func(e *Engine) { e.segmenterConfig = config }
}

func WithModel(model string) EngineOption {
	return func(e *Engine) { e.model = model }
}

func WithSystemInstruction(instruction string) EngineOption {
	return func(e *Engine) { e.systemInstruction = instruction }
}

// State is a point-in-time snapshot of what the engine is doing.
type State struct {
	// Listening is true while the engine holds the capture device and a
	// live session.
	Listening bool
	// Speaking is true while reply audio is queued or playing.
	Speaking bool
	// Capturing is true while a user utterance is open.
	Capturing bool
}

type ListenOptions struct {
	onUserTurnStart       func(turnID string, startedAt time.Time)
	onUserTranscriptDelta func(turnID, text string, isFinal bool)
	onUserTurnEnd         func(turnID string, endedAt time.Time)
	onUserAudio           func(wav []byte)
	onAiAudioChunk        func(turnID string, samples []int16, sampleRate int)
	onAiTurnComplete      func(turn Turn)
	onState               func(state State)
	onStatus              func(message string)
	onError               func(err error)
	onEvent               func(event events.Event)
}

type ListenOption func(*ListenOptions)

// WithUserTurnStartCallback registers a callback for detected speech opening
// a turn.
func WithUserTurnStartCallback(callback func(turnID string, startedAt time.Time)) ListenOption {
	return func(o *ListenOptions) {
		o.onUserTurnStart = callback
	}
}

// WithUserTranscriptCallback registers a callback for user transcription
// deltas. isFinal marks the utterance as committed.
func WithUserTranscriptCallback(callback func(turnID, text string, isFinal bool)) ListenOption {
	return func(o *ListenOptions) {
		o.onUserTranscriptDelta = callback
	}
}

// WithUserTurnEndCallback registers a callback for the end of the user's
// utterance.
func WithUserTurnEndCallback(callback func(turnID string, endedAt time.Time)) ListenOption {
	return func(o *ListenOptions) {
		o.onUserTurnEnd = callback
	}
}

// WithUserAudioCallback registers a callback for the captured utterance as a
// WAV blob. Only invoked when the capture clears the loudness gate.
func WithUserAudioCallback(callback func(wav []byte)) ListenOption {
	return func(o *ListenOptions) {
		o.onUserAudio = callback
	}
}

// WithAiAudioChunkCallback registers a callback for each reply audio chunk as
// it arrives, before playback.
func WithAiAudioChunkCallback(callback func(turnID string, samples []int16, sampleRate int)) ListenOption {
	return func(o *ListenOptions) {
		o.onAiAudioChunk = callback
	}
}

// WithAiTurnCompleteCallback registers a callback for the completed-turn
// record. Invoked exactly once per turn.
func WithAiTurnCompleteCallback(callback func(turn Turn)) ListenOption {
	return func(o *ListenOptions) {
		o.onAiTurnComplete = callback
	}
}

// WithStateCallback registers a callback for listening/speaking/capturing
// state changes.
func WithStateCallback(callback func(state State)) ListenOption {
	return func(o *ListenOptions) {
		o.onState = callback
	}
}

// WithStatusCallback registers a callback for human-readable progress
// messages.
func WithStatusCallback(callback func(message string)) ListenOption {
	return func(o *ListenOptions) {
		o.onStatus = callback
	}
}

// WithErrorCallback registers a callback for terminal engine errors. Invoked
// at most once; after it fires the engine has torn itself down.
func WithErrorCallback(callback func(err error)) ListenOption {
	return func(o *ListenOptions) {
		o.onError = callback
	}
}

// WithEventCallback registers a sink for the typed engine event stream, for
// observers that do not want to wire every individual callback.
func WithEventCallback(callback func(event events.Event)) ListenOption {
	return func(o *ListenOptions) {
		o.onEvent = callback
	}
}
