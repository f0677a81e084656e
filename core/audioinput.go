package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/voxboard/voxboard-core/core/audio"
)

// audioInput normalizes capture client behavior behind one facade so the
// engine does not care whether the configured device supports explicit
// capture controls.
type audioInput struct {
	// base stores the configured input client used for streaming audio.
	base AudioInput
	// fineControl is set when the input client supports explicit capture controls.
	fineControl AudioInputFine

	// connected reports whether a concrete input client is currently configured.
	connected atomic.Bool
	// isCapturing reports whether the input client is currently capturing audio.
	isCapturing atomic.Bool

	// onFrame receives every captured frame. The device callback path must
	// stay non-blocking, so receivers enqueue rather than process inline.
	onFrame func(frame []byte)
}

func newAudioInput(client AudioInput, onFrame func(frame []byte)) *audioInput {
	if onFrame == nil {
		onFrame = func([]byte) {}
	}

	input := audioInput{onFrame: onFrame}
	input.Set(client)
	return &input
}

func (a *audioInput) Set(client AudioInput) {
	if a == nil {
		return
	}

	a.base = client
	a.fineControl = nil
	a.connected.Store(false)
	a.isCapturing.Store(false)

	if client == nil {
		return
	}

	a.connected.Store(true)
	if fine, ok := client.(AudioInputFine); ok {
		a.fineControl = fine
	}
}

func (a *audioInput) IsConfigured() bool            { return a != nil && a.connected.Load() }
func (a *audioInput) SupportsCaptureControls() bool { return a != nil && a.fineControl != nil }
func (a *audioInput) IsCapturing() bool             { return a != nil && a.isCapturing.Load() }

// Capture starts the device stream. Clients with capture controls report a
// start failure synchronously; stream-only clients block inside Stream, so
// their failures are surfaced through onError instead. Either way a dead
// device never leaves capture silently absent.
func (a *audioInput) Capture(ctx context.Context, onError func(error)) error {
	if a == nil || !a.IsConfigured() {
		return nil
	}

	if !a.isCapturing.CompareAndSwap(false, true) {
		return nil
	}

	if a.SupportsCaptureControls() {
		if err := a.fineControl.StartCapture(ctx, a.onFrame); err != nil {
			a.isCapturing.Store(false)
			return err
		}
		return nil
	}

	go func() {
		if err := a.base.Stream(ctx, a.onFrame); err != nil {
			a.isCapturing.Store(false)
			logger.Error("Audio input stream ended with error", "error", err)
			if onError != nil {
				onError(fmt.Errorf("audio capture stream failed: %w", err))
			}
		}
	}()
	return nil
}

func (a *audioInput) StopCapture() error {
	if a == nil || !a.SupportsCaptureControls() {
		return nil
	}

	if err := a.fineControl.StopCapture(); err != nil {
		return err
	}
	a.isCapturing.Store(false)
	return nil
}

func (a *audioInput) Close() error {
	if a == nil {
		return nil
	}

	var err error
	if a.base != nil && a.IsConfigured() {
		if a.fineControl != nil {
			err = a.fineControl.StopCapture()
		}
		a.base.Close()
	}
	a.isCapturing.Store(false)
	a.connected.Store(false)

	return err
}

func (a *audioInput) EncodingInfo() audio.EncodingInfo {
	if a == nil || a.base == nil {
		return audio.GetDefaultEncodingInfo()
	}

	return a.base.EncodingInfo()
}
