// Package session defines the bidirectional streaming contract between the
// engine and a remote conversational model service: uplink audio framing and
// a normalized, tagged set of downlink events.
package session

import "context"

// State describes the lifecycle of one streaming session.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateClosed     State = "closed"
)

// Transport is one streaming connection to a remote model service. A
// transport is owned by exactly one engine instance; it is destroyed on
// explicit close or transport error and never reconnects on its own.
type Transport interface {
	// Connect opens the session. Downlink events and terminal errors are
	// delivered through the configured callbacks.
	Connect(ctx context.Context, opts ...Option) error
	// SendAudio uplinks one PCM16 frame at the canonical input rate. Sends
	// are fire-and-forget; the capture path must never block on them.
	SendAudio(samples []int16) error
	// EndAudioStream marks the end of the current user utterance. Sent once
	// per turn.
	EndAudioStream() error
	// SendToolResponse reports a function-call result back into the session.
	SendToolResponse(callID, name string, response map[string]any) error
	// State reports the current connection state.
	State() State
	// Close tears the session down. Safe to call more than once.
	Close() error
}

// ToolDeclaration advertises one callable function to the remote session.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Options struct {
	Model             string
	SystemInstruction string
	Tools             []ToolDeclaration

	EventCallback func(Event)
	ErrorCallback func(error)
}

type Option func(*Options)

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithSystemInstruction(instruction string) Option {
	return func(o *Options) {
		o.SystemInstruction = instruction
	}
}

func WithTools(tools ...ToolDeclaration) Option {
	return func(o *Options) {
		o.Tools = append(o.Tools, tools...)
	}
}

// WithEventCallback registers the downlink event sink. Events arrive in
// receive order on a single goroutine.
func WithEventCallback(callback func(Event)) Option {
	return func(o *Options) {
		o.EventCallback = callback
	}
}

// WithErrorCallback registers the terminal error sink. It is invoked at most
// once; after it fires the transport is unusable.
func WithErrorCallback(callback func(error)) Option {
	return func(o *Options) {
		o.ErrorCallback = callback
	}
}
