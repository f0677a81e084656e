package engine

import (
	"reflect"

	"github.com/voxboard/voxboard-core/core/audio"
)

// audioOutput wraps the configured playback device client. The playback
// scheduler owns all timing; this facade only forwards bytes and normalizes
// nil/typed-nil clients so unconfigured output degrades to dropped audio
// instead of panics.
//
// Forwarding is best effort: the send path treats device output as a
// non-fatal side effect and drops the chunk on client errors.
type audioOutput struct {
	// base stores the configured output client, nil when unconfigured.
	base AudioOutput
}

func newAudioOutput(client AudioOutput) *audioOutput {
	output := audioOutput{}
	output.Set(client)
	return &output
}

// Set replaces the configured output client. Nil and typed-nil clients are
// treated as unconfigured.
func (a *audioOutput) Set(client AudioOutput) {
	if a == nil {
		return
	}

	a.base = nil
	if isNilAudioOutput(client) {
		return
	}
	a.base = client
}

func (a *audioOutput) IsConfigured() bool {
	return a != nil && a.base != nil
}

// SendAudio forwards PCM16 bytes to the device. Unconfigured output drops
// the chunk.
func (a *audioOutput) SendAudio(pcm []byte) {
	if !a.IsConfigured() {
		return
	}

	if err := a.base.SendAudio(pcm); err != nil {
		logger.Debug("playback device rejected audio chunk", "error", err)
	}
}

// Clear flushes buffered audio on the device.
func (a *audioOutput) Clear() {
	if !a.IsConfigured() {
		return
	}

	a.base.ClearBuffer()
}

// Close releases the device if the client exposes a close method.
func (a *audioOutput) Close() {
	if !a.IsConfigured() {
		return
	}

	switch c := a.base.(type) {
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			logger.Debug("failed to close playback device", "error", err)
		}
	case interface{ Close() }:
		c.Close()
	}
}

func (a *audioOutput) EncodingInfo() audio.EncodingInfo {
	if !a.IsConfigured() {
		return audio.GetPlaybackEncodingInfo()
	}

	return a.base.EncodingInfo()
}

// isNilAudioOutput detects nil and typed-nil interface values so Set can
// avoid storing unusable interface wrappers as configured clients.
func isNilAudioOutput(client AudioOutput) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
