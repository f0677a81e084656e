package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/voxboard/voxboard-core/core/audio"
	"github.com/voxboard/voxboard-core/core/session"
)

const testWait = 2 * time.Second

type fakeCaptureDevice struct {
	mu      sync.Mutex
	onAudio func([]byte)
	stopped bool
	closed  bool
}

func (d *fakeCaptureDevice) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (d *fakeCaptureDevice) Stream(ctx context.Context, onAudio func([]byte)) error {
	if err := d.StartCapture(ctx, onAudio); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (d *fakeCaptureDevice) StartCapture(_ context.Context, onAudio func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAudio = onAudio
	return nil
}

func (d *fakeCaptureDevice) StopCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *fakeCaptureDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *fakeCaptureDevice) push(frame []byte) {
	d.mu.Lock()
	onAudio := d.onAudio
	d.mu.Unlock()
	if onAudio != nil {
		onAudio(frame)
	}
}

// brokenStreamDevice is a stream-only capture client whose stream dies
// immediately, like a capture device that is present but unusable.
type brokenStreamDevice struct {
	err error
}

func (d *brokenStreamDevice) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (d *brokenStreamDevice) Stream(context.Context, func([]byte)) error {
	return d.err
}

func (d *brokenStreamDevice) Close() {}

type fakePlaybackDevice struct {
	mu      sync.Mutex
	chunks  [][]byte
	cleared bool
}

func (d *fakePlaybackDevice) EncodingInfo() audio.EncodingInfo {
	return audio.GetPlaybackEncodingInfo()
}

func (d *fakePlaybackDevice) SendAudio(pcm []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chunks = append(d.chunks, pcm)
	return nil
}

func (d *fakePlaybackDevice) ClearBuffer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleared = true
}

type toolResponseRecord struct {
	callID   string
	name     string
	response map[string]any
}

type fakeSessionTransport struct {
	mu sync.Mutex

	options       session.Options
	state         session.State
	sentFrames    [][]int16
	streamEnds    int
	toolResponses []toolResponseRecord

	connectErr error
}

func newFakeSessionTransport() *fakeSessionTransport {
	return &fakeSessionTransport{state: session.StateIdle}
}

func (t *fakeSessionTransport) Connect(_ context.Context, opts ...session.Option) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connectErr != nil {
		return t.connectErr
	}

	options := session.Options{}
	for _, opt := range opts {
		opt(&options)
	}
	t.options = options
	t.state = session.StateActive
	return nil
}

func (t *fakeSessionTransport) SendAudio(samples []int16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sentFrames = append(t.sentFrames, samples)
	return nil
}

func (t *fakeSessionTransport) EndAudioStream() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streamEnds++
	return nil
}

func (t *fakeSessionTransport) SendToolResponse(callID, name string, response map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toolResponses = append(t.toolResponses, toolResponseRecord{callID: callID, name: name, response: response})
	return nil
}

func (t *fakeSessionTransport) State() session.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *fakeSessionTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = session.StateClosed
	return nil
}

func (t *fakeSessionTransport) emit(event session.Event) {
	t.mu.Lock()
	callback := t.options.EventCallback
	t.mu.Unlock()
	if callback != nil {
		callback(event)
	}
}

func (t *fakeSessionTransport) failWith(err error) {
	t.mu.Lock()
	callback := t.options.ErrorCallback
	t.mu.Unlock()
	if callback != nil {
		callback(err)
	}
}

func (t *fakeSessionTransport) sentFrameCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sentFrames)
}

func speechFrame() []byte {
	samples := make([]int16, 320)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 5000
		} else {
			samples[i] = -5000
		}
	}
	return audio.Int16ToBytes(samples)
}

func silenceFrame() []byte {
	return audio.Int16ToBytes(make([]int16, 320))
}

func testSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{SilenceHangover: time.Nanosecond}
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case value := <-ch:
		return value
	case <-time.After(testWait):
		t.Fatalf("Timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestEngineListenRejectsConcurrentSessions(t *testing.T) {
	transport := newFakeSessionTransport()
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&fakeCaptureDevice{}),
	)
	defer e.Stop()

	if err := e.Listen(context.Background()); err != nil {
		t.Fatalf("Expected first Listen to succeed, got: %v", err)
	}
	if err := e.Listen(context.Background()); err == nil {
		t.Fatalf("Expected second Listen to fail while listening")
	}
}

func TestEngineListenFailsOnDeadTransport(t *testing.T) {
	transport := newFakeSessionTransport()
	transport.connectErr = fmt.Errorf("connection refused")
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&fakeCaptureDevice{}),
	)

	if err := e.Listen(context.Background()); err == nil {
		t.Fatalf("Expected Listen to fail when the transport cannot connect")
	}
	if e.State().Listening {
		t.Errorf("Expected engine not to be listening after failed Listen")
	}
}

func TestEngineSpeechOpensTurnAndUplinksAudio(t *testing.T) {
	transport := newFakeSessionTransport()
	device := &fakeCaptureDevice{}
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(device),
		WithSegmenterConfig(testSegmenterConfig()),
	)
	defer e.Stop()

	turnStarted := make(chan string, 1)
	turnEnded := make(chan string, 1)
	err := e.Listen(context.Background(),
		WithUserTurnStartCallback(func(turnID string, _ time.Time) {
			select {
			case turnStarted <- turnID:
			default:
			}
		}),
		WithUserTurnEndCallback(func(turnID string, _ time.Time) {
			select {
			case turnEnded <- turnID:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	device.push(speechFrame())
	device.push(speechFrame())
	startedID := waitFor(t, turnStarted, "turn start")

	// The hangover is a nanosecond, so the first silent frame ends the turn.
	time.Sleep(time.Millisecond)
	device.push(silenceFrame())
	endedID := waitFor(t, turnEnded, "turn end")

	if startedID != endedID {
		t.Errorf("Expected matching turn IDs, got start=%q end=%q", startedID, endedID)
	}
	if transport.sentFrameCount() == 0 {
		t.Errorf("Expected speech frames to be uplinked")
	}

	transport.mu.Lock()
	streamEnds := transport.streamEnds
	transport.mu.Unlock()
	if streamEnds != 1 {
		t.Errorf("Expected exactly one end-of-stream marker, got %d", streamEnds)
	}
}

func TestEngineSilenceNeverOpensTurn(t *testing.T) {
	transport := newFakeSessionTransport()
	device := &fakeCaptureDevice{}
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(device),
		WithSegmenterConfig(testSegmenterConfig()),
	)
	defer e.Stop()

	started := make(chan string, 1)
	err := e.Listen(context.Background(),
		WithUserTurnStartCallback(func(turnID string, _ time.Time) { started <- turnID }),
	)
	if err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	for range 20 {
		device.push(silenceFrame())
	}

	select {
	case turnID := <-started:
		t.Fatalf("Expected no turn from silence, got turn %q", turnID)
	case <-time.After(100 * time.Millisecond):
	}
	if transport.sentFrameCount() != 0 {
		t.Errorf("Expected no uplinked frames from silence, got %d", transport.sentFrameCount())
	}
}

func TestEngineAssemblesTurnFromSessionEvents(t *testing.T) {
	transport := newFakeSessionTransport()
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&fakeCaptureDevice{}),
	)
	defer e.Stop()

	completed := make(chan Turn, 2)
	err := e.Listen(context.Background(),
		WithAiTurnCompleteCallback(func(turn Turn) { completed <- turn }),
	)
	if err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	transport.emit(session.InputTranscript{Text: "pan the", IsFinal: false})
	transport.emit(session.InputTranscript{Text: "pan the board left", IsFinal: true})
	transport.emit(session.TextDelta{Text: "Sure, "})
	transport.emit(session.TextDelta{Text: "panning left."})
	transport.emit(session.AudioChunk{Samples: make([]int16, 2400), SampleRate: audio.PlaybackSampleRate})
	transport.emit(session.TurnComplete{})

	turn := waitFor(t, completed, "completed turn")
	if turn.UserTranscript != "pan the board left" {
		t.Errorf("Expected merged user transcript, got %q", turn.UserTranscript)
	}
	if turn.Text != "Sure, panning left." {
		t.Errorf("Expected assembled reply text, got %q", turn.Text)
	}
	if len(turn.Audio) == 0 {
		t.Errorf("Expected reply audio in the completed turn")
	}
	if turn.AudioSampleRate != audio.PlaybackSampleRate {
		t.Errorf("Expected reply audio at %d Hz, got %d", audio.PlaybackSampleRate, turn.AudioSampleRate)
	}
}

func TestEngineFinalTranscriptEndsUserTurn(t *testing.T) {
	transport := newFakeSessionTransport()
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&fakeCaptureDevice{}),
	)
	defer e.Stop()

	ended := make(chan string, 2)
	err := e.Listen(context.Background(),
		WithUserTurnEndCallback(func(turnID string, _ time.Time) { ended <- turnID }),
	)
	if err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	transport.emit(session.InputTranscript{Text: "zoom in", IsFinal: true})
	waitFor(t, ended, "turn end from final transcript")

	// A repeated final delta for the same turn is ignored.
	transport.emit(session.InputTranscript{Text: "zoom in", IsFinal: true})
	select {
	case turnID := <-ended:
		t.Fatalf("Expected a single turn end, got a second one for %q", turnID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngineFinalizesTurnExactlyOnce(t *testing.T) {
	transport := newFakeSessionTransport()
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&fakeCaptureDevice{}),
	)
	defer e.Stop()

	completed := make(chan Turn, 2)
	err := e.Listen(context.Background(),
		WithAiTurnCompleteCallback(func(turn Turn) { completed <- turn }),
	)
	if err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	transport.emit(session.TextDelta{Text: "hello"})
	transport.emit(session.TurnComplete{})
	transport.emit(session.TurnComplete{})

	waitFor(t, completed, "completed turn")
	select {
	case turn := <-completed:
		t.Fatalf("Expected a single completed turn, got a second one: %+v", turn)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngineBridgesFunctionCalls(t *testing.T) {
	transport := newFakeSessionTransport()
	canvas := &recordingCanvas{}
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&fakeCaptureDevice{}),
		WithCanvasController(canvas),
	)
	defer e.Stop()

	completed := make(chan Turn, 1)
	err := e.Listen(context.Background(),
		WithAiTurnCompleteCallback(func(turn Turn) { completed <- turn }),
	)
	if err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	transport.mu.Lock()
	toolCount := len(transport.options.Tools)
	transport.mu.Unlock()
	if toolCount == 0 {
		t.Fatalf("Expected canvas tools to be declared on connect")
	}

	transport.emit(session.FunctionCall{
		CallID: "call-1",
		Name:   "canvas_pan",
		Args:   json.RawMessage(`{"dx": 10, "dy": -5}`),
	})

	deadline := time.Now().Add(testWait)
	for {
		transport.mu.Lock()
		responses := len(transport.toolResponses)
		transport.mu.Unlock()
		if responses > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for tool response")
		}
		time.Sleep(5 * time.Millisecond)
	}

	transport.mu.Lock()
	response := transport.toolResponses[0]
	transport.mu.Unlock()
	if response.callID != "call-1" || response.name != "canvas_pan" {
		t.Errorf("Expected tool response for call-1/canvas_pan, got %q/%q", response.callID, response.name)
	}
	if response.response["result"] != "ok" {
		t.Errorf("Expected ok tool response, got %v", response.response)
	}
	if canvas.panCalls != 1 || canvas.lastDX != 10 || canvas.lastDY != -5 {
		t.Errorf("Expected one pan of (10, -5), got %d pans with (%v, %v)", canvas.panCalls, canvas.lastDX, canvas.lastDY)
	}

	transport.emit(session.TurnComplete{})
	turn := waitFor(t, completed, "completed turn")
	if len(turn.ToolSummary) != 1 {
		t.Fatalf("Expected one tool summary on the turn, got %v", turn.ToolSummary)
	}
}

func TestEngineSchedulesReplyAudioForPlayback(t *testing.T) {
	transport := newFakeSessionTransport()
	output := &fakePlaybackDevice{}
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&fakeCaptureDevice{}),
		WithAudioOutput(output),
	)
	defer e.Stop()

	if err := e.Listen(context.Background()); err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	transport.emit(session.AudioChunk{Samples: make([]int16, 240), SampleRate: audio.PlaybackSampleRate})

	deadline := time.Now().Add(testWait)
	for {
		output.mu.Lock()
		delivered := len(output.chunks)
		output.mu.Unlock()
		if delivered > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for playback delivery")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEngineStreamDeviceFailureSurfacesError(t *testing.T) {
	transport := newFakeSessionTransport()
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&brokenStreamDevice{err: fmt.Errorf("no capture device available")}),
	)
	defer e.Stop()

	errs := make(chan error, 1)
	err := e.Listen(context.Background(),
		WithErrorCallback(func(err error) { errs <- err }),
	)
	if err != nil {
		t.Fatalf("Expected Listen to succeed before the stream fails, got: %v", err)
	}

	received := waitFor(t, errs, "device error")
	if received == nil {
		t.Fatalf("Expected a non-nil device error")
	}

	deadline := time.Now().Add(testWait)
	for e.State().Listening {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for engine to leave the listening state")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if transport.State() != session.StateClosed {
		t.Errorf("Expected transport to be closed after device failure, got %q", transport.State())
	}
}

func TestEngineDownlinkEventsOpenTurn(t *testing.T) {
	transport := newFakeSessionTransport()
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&fakeCaptureDevice{}),
	)
	defer e.Stop()

	started := make(chan string, 1)
	completed := make(chan Turn, 1)
	err := e.Listen(context.Background(),
		WithUserTurnStartCallback(func(turnID string, _ time.Time) {
			select {
			case started <- turnID:
			default:
			}
		}),
		WithAiTurnCompleteCallback(func(turn Turn) { completed <- turn }),
	)
	if err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	// No local speech at all: the turn opens from the downlink side.
	transport.emit(session.TextDelta{Text: "hello"})

	startedID := waitFor(t, started, "turn start from downlink event")

	transport.emit(session.TurnComplete{})
	turn := waitFor(t, completed, "completed turn")
	if turn.ID != startedID {
		t.Errorf("Expected completed turn %q to match the started turn %q", turn.ID, startedID)
	}
}

func TestEngineTransportErrorTearsDown(t *testing.T) {
	transport := newFakeSessionTransport()
	device := &fakeCaptureDevice{}
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(device),
	)

	errs := make(chan error, 1)
	err := e.Listen(context.Background(),
		WithErrorCallback(func(err error) { errs <- err }),
	)
	if err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	transport.failWith(fmt.Errorf("stream reset"))

	received := waitFor(t, errs, "transport error")
	if received == nil {
		t.Fatalf("Expected a non-nil transport error")
	}

	e.Stop()
	if e.State().Listening {
		t.Errorf("Expected engine to stop listening after transport error")
	}
	if transport.State() != session.StateClosed {
		t.Errorf("Expected transport to be closed, got %q", transport.State())
	}
	device.mu.Lock()
	stopped := device.stopped
	device.mu.Unlock()
	if !stopped {
		t.Errorf("Expected capture to be stopped")
	}
}

func TestEngineStopIsIdempotent(t *testing.T) {
	transport := newFakeSessionTransport()
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&fakeCaptureDevice{}),
	)

	if err := e.Listen(context.Background()); err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	e.Stop()
	e.Stop()

	if e.State().Listening {
		t.Errorf("Expected engine not to be listening after Stop")
	}
	if err := e.Listen(context.Background()); err != nil {
		t.Fatalf("Expected Listen to work again after Stop, got: %v", err)
	}
	e.Stop()
}

func TestEngineContextCancelStopsListening(t *testing.T) {
	transport := newFakeSessionTransport()
	e := New(
		WithSessionTransport(transport),
		WithAudioInput(&fakeCaptureDevice{}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	if err := e.Listen(ctx); err != nil {
		t.Fatalf("Expected Listen to succeed, got: %v", err)
	}

	cancel()

	deadline := time.Now().Add(testWait)
	for e.State().Listening {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for engine to stop after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
