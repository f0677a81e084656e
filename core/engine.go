package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxboard/voxboard-core/core/audio"
	"github.com/voxboard/voxboard-core/core/events"
	"github.com/voxboard/voxboard-core/core/session"
	"github.com/voxboard/voxboard-core/core/session/gemini"
)

var droppedFrameCounter, _ = meter.Int64Counter("voxboard.capture.dropped_frames",
	metric.WithDescription("Capture frames dropped because the run loop queue was full"),
)

// Engine owns one live voice conversation: it captures microphone audio,
// segments it into user turns, streams it over a session transport, schedules
// reply audio for playback, bridges tool calls onto the canvas collaborator,
// and assembles completed-turn records.
//
// One engine runs at most one listening session at a time. Listen starts the
// session and returns; Stop tears it down in order and blocks until the run
// loop has exited.
type Engine struct {
	audioInput  *audioInput
	audioOutput *audioOutput
	transport   session.Transport
	canvas      CanvasController
	intent      IntentHandler

	segmenterConfig   SegmenterConfig
	model             string
	systemInstruction string

	listening atomic.Bool
	run       atomic.Pointer[listenRun]
}

func New(opts ...EngineOption) *Engine {
	e := &Engine{}
	e.audioInput = newAudioInput(nil, e.handleCaptureFrame)
	e.audioOutput = newAudioOutput(nil)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// State reports a point-in-time snapshot of what the engine is doing.
func (e *Engine) State() State {
	state := State{Listening: e.listening.Load()}
	if run := e.run.Load(); run != nil {
		state.Speaking = run.speaking.Load()
		state.Capturing = run.capturing.Load()
	}
	return state
}

// Listen opens the session transport, starts audio capture and playback, and
// runs the conversation until Stop is called, the context is canceled, or the
// transport fails. It returns once the session is up; conversation output is
// delivered through the registered callbacks.
func (e *Engine) Listen(ctx context.Context, opts ...ListenOption) error {
	ctx, span := tracer.Start(ctx, "listen")
	defer span.End()

	if !e.listening.CompareAndSwap(false, true) {
		err := fmt.Errorf("engine is already listening")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	listenOptions := ListenOptions{}
	for _, opt := range opts {
		opt(&listenOptions)
	}

	transport := e.transport
	if transport == nil {
		transport = gemini.NewClient()
	}

	captureCtx, cancelCapture := context.WithCancel(context.Background())
	run := &listenRun{
		engine:        e,
		opts:          listenOptions,
		emit:          newCallbackEventEmitter(listenOptions),
		queue:         make(chan engineMessage, 256),
		stopping:      make(chan struct{}),
		done:          make(chan struct{}),
		segmenter:     newSegmenter(e.segmenterConfig),
		bridge:        newToolBridge(e.canvas, e.intent),
		transport:     transport,
		cancelCapture: cancelCapture,
	}
	run.scheduler = newPlaybackScheduler(func(samples []int16, sampleRate int) {
		e.audioOutput.SendAudio(audio.Int16ToBytes(samples))
	})
	run.scheduler.onDrained = func() {
		run.enqueue(playbackDrainedMsg{})
	}

	run.status("connecting session")
	err := transport.Connect(ctx,
		session.WithModel(e.model),
		session.WithSystemInstruction(e.systemInstruction),
		session.WithTools(run.bridge.Declarations()...),
		session.WithEventCallback(func(event session.Event) {
			run.enqueue(sessionEventMsg{event: event})
		}),
		session.WithErrorCallback(func(err error) {
			run.fail(err)
		}),
	)
	if err != nil {
		cancelCapture()
		e.listening.Store(false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to connect session: %w", err)
	}

	// Stream-only capture clients fail asynchronously; their errors feed the
	// run's failure path so the session tears down and onError still fires.
	if err := e.audioInput.Capture(captureCtx, run.fail); err != nil {
		_ = transport.Close()
		cancelCapture()
		e.listening.Store(false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	run.scheduler.Start()
	run.cancelHook = withContextCancelHook(ctx, run.stop)

	e.run.Store(run)
	go func() {
		if err := panicSafeNamedWorker("engine run loop", run.loop)(context.Background()); err != nil {
			logger.Error("Engine run loop aborted", "error", err)
		}
	}()

	run.status("listening")
	run.emitState()
	span.SetAttributes(attribute.String("session.model", e.model))
	return nil
}

// Stop tears the session down in order and blocks until the run loop has
// exited. Safe to call more than once, and a no-op when not listening.
func (e *Engine) Stop() {
	run := e.run.Load()
	if run == nil {
		return
	}

	run.stop()
	<-run.done
}

// Close stops any active session and releases the audio devices.
func (e *Engine) Close() error {
	e.Stop()

	err := e.audioInput.Close()
	e.audioOutput.Close()
	return err
}

// handleCaptureFrame runs on the device callback path and must never block:
// frames are copied and enqueued for the run loop, or dropped when the queue
// is full.
func (e *Engine) handleCaptureFrame(frame []byte) {
	run := e.run.Load()
	if run == nil {
		return
	}

	buffered := make([]byte, len(frame))
	copy(buffered, frame)
	if !run.tryEnqueue(captureFrameMsg{frame: buffered}) {
		droppedFrameCounter.Add(context.Background(), 1)
	}
}

type engineMessage interface{ engineMessage() }

type captureFrameMsg struct{ frame []byte }
type sessionEventMsg struct{ event session.Event }
type toolResultMsg struct {
	call   session.FunctionCall
	result toolResult
}
type playbackDrainedMsg struct{}

func (captureFrameMsg) engineMessage()    {}
func (sessionEventMsg) engineMessage()    {}
func (toolResultMsg) engineMessage()      {}
func (playbackDrainedMsg) engineMessage() {}

// listenRun is the state of one listening session. The run loop is the only
// writer of turn and segmenter state; every other goroutine communicates with
// it through the message queue.
type listenRun struct {
	engine *Engine
	opts   ListenOptions
	emit   eventEmitter

	queue    chan engineMessage
	stopping chan struct{}
	done     chan struct{}

	segmenter *segmenter
	scheduler *playbackScheduler
	bridge    *toolBridge
	transport session.Transport

	turn *activeTurn

	speaking  atomic.Bool
	capturing atomic.Bool

	stopOnce   sync.Once
	failedErr  atomic.Pointer[error]
	cancelHook chan struct{}

	cancelCapture context.CancelFunc

	lastState State
}

func (r *listenRun) enqueue(message engineMessage) {
	select {
	case r.queue <- message:
	case <-r.stopping:
	}
}

func (r *listenRun) tryEnqueue(message engineMessage) bool {
	select {
	case r.queue <- message:
		return true
	default:
		return false
	}
}

func (r *listenRun) stop() {
	r.stopOnce.Do(func() {
		close(r.stopping)
	})
}

// fail records the first terminal transport error and stops the run.
func (r *listenRun) fail(err error) {
	if err != nil {
		r.failedErr.CompareAndSwap(nil, &err)
	}
	r.stop()
}

func (r *listenRun) status(message string) {
	if r.opts.onStatus != nil {
		r.opts.onStatus(message)
	}
}

// emitState pushes a state snapshot to the callback when it differs from the
// last one pushed.
func (r *listenRun) emitState() {
	state := State{
		Listening: r.engine.listening.Load(),
		Speaking:  r.speaking.Load(),
		Capturing: r.capturing.Load(),
	}
	if state == r.lastState {
		return
	}
	r.lastState = state

	if r.opts.onState != nil {
		r.opts.onState(state)
	}
}

func (r *listenRun) loop(context.Context) error {
	defer r.teardown()

	for {
		select {
		case <-r.stopping:
			return nil
		case message := <-r.queue:
			switch msg := message.(type) {
			case captureFrameMsg:
				r.handleCaptureFrame(msg.frame)
			case sessionEventMsg:
				r.handleSessionEvent(msg.event)
			case toolResultMsg:
				r.handleToolResult(msg.call, msg.result)
			case playbackDrainedMsg:
				// A chunk scheduled after the drain signal keeps the
				// engine audibly speaking.
				if !r.scheduler.Pending() {
					r.emit(events.NewPlaybackDrained())
					r.speaking.Store(false)
					r.emitState()
				}
			}
		}
	}
}

// teardown runs once, on the run loop goroutine, after the loop exits. Order
// matters: capture stops first so no more uplink is produced, the utterance
// is closed before the transport goes away, and the turn is finalized before
// callbacks stop firing.
func (r *listenRun) teardown() {
	r.status("stopping")

	r.cancelCapture()
	if err := r.engine.audioInput.StopCapture(); err != nil {
		logger.Warn("Failed to stop audio capture", "error", err)
	}

	if r.turn != nil && r.turn.userEndedAt == nil && r.segmenter.IsCapturing() {
		if err := r.transport.EndAudioStream(); err != nil {
			logger.Debug("Failed to close audio stream on teardown", "error", err)
		}
	}

	if err := r.transport.Close(); err != nil {
		logger.Debug("Failed to close session transport", "error", err)
	}

	r.finalizeTurn()

	r.scheduler.Flush()
	r.scheduler.Close()
	r.engine.audioOutput.Clear()

	if r.cancelHook != nil {
		close(r.cancelHook)
	}

	if errPtr := r.failedErr.Load(); errPtr != nil {
		if r.opts.onError != nil {
			r.opts.onError(*errPtr)
		}
	}

	r.engine.listening.Store(false)
	r.speaking.Store(false)
	r.capturing.Store(false)
	r.emitState()
	r.engine.run.CompareAndSwap(r, nil)
	close(r.done)
}

// handleCaptureFrame classifies one capture frame and, while an utterance is
// open, uplinks it at the canonical input rate.
func (r *listenRun) handleCaptureFrame(frame []byte) {
	samples := audio.BytesToInt16(frame)
	if len(samples) == 0 {
		return
	}

	inputRate := r.engine.audioInput.EncodingInfo().SampleRate
	resampled := audio.Resample(audio.Int16ToFloat(samples), inputRate, audio.DefaultSampleRate)

	edge := r.segmenter.Process(audio.RMS(resampled))
	switch edge {
	case edgeStart:
		r.openTurn()
	case edgeEnd:
		r.closeUtterance()
		return
	}

	if !r.segmenter.IsCapturing() {
		return
	}

	pcm := audio.FloatToInt16(resampled)
	if r.turn != nil {
		r.turn.addUserAudio(pcm)
	}
	if err := r.transport.SendAudio(pcm); err != nil {
		logger.Debug("Failed to uplink audio frame", "error", err)
	}
}

func (r *listenRun) openTurn() {
	r.ensureTurn()
	r.capturing.Store(true)
	r.emitState()
}

// closeUtterance ends the user half of the turn on the segmenter's end edge.
// The segmenter reports that edge exactly once per turn, so the end-of-stream
// marker and the captured-audio handoff are tied to it rather than to the
// end timestamp, which a final transcription delta may have set already.
func (r *listenRun) closeUtterance() {
	r.capturing.Store(false)

	if r.turn == nil {
		r.emitState()
		return
	}

	if err := r.transport.EndAudioStream(); err != nil {
		logger.Debug("Failed to close audio stream", "error", err)
	}

	if r.turn.markUserEnded(time.Now()) {
		r.emit(events.NewUserTurnEnded(r.turn.id, *r.turn.userEndedAt))
	}
	if r.turn.userAudioPassesGate() {
		r.emit(events.NewUserAudioCaptured(r.turn.id, r.turn.userAudioWAV()))
	}
	r.emitState()
}

func (r *listenRun) handleSessionEvent(event session.Event) {
	switch typedEvent := event.(type) {
	case session.InputTranscript:
		turn := r.ensureTurn()
		turn.applyUserTranscript(typedEvent.Text)
		r.emit(events.NewUserTranscriptUpdated(turn.id, turn.userTranscript, typedEvent.IsFinal))
		// A final transcription delta also closes the user half of the turn
		// when local voice detection has not already done so. The end-of-stream
		// marker is owned by the segmenter path, so only the notification
		// fires here.
		if typedEvent.IsFinal && turn.markUserEnded(time.Now()) {
			r.capturing.Store(false)
			r.emit(events.NewUserTurnEnded(turn.id, *turn.userEndedAt))
			r.emitState()
		}

	case session.TextDelta:
		turn := r.ensureTurn()
		turn.applyModelText(typedEvent.Text)
		r.emit(events.NewModelTextDelta(turn.id, typedEvent.Text))

	case session.AudioChunk:
		turn := r.ensureTurn()
		turn.addModelAudio(typedEvent.Samples, typedEvent.SampleRate)
		startAt := r.scheduler.Schedule(typedEvent.Samples, typedEvent.SampleRate)

		duration := time.Duration(len(typedEvent.Samples)) * time.Second / time.Duration(max(typedEvent.SampleRate, 1))
		r.emit(events.NewModelAudioFrame(turn.id, typedEvent.Samples, typedEvent.SampleRate))
		r.emit(events.NewPlaybackScheduled(startAt, duration))
		r.speaking.Store(true)
		r.emitState()

	case session.FunctionCall:
		r.ensureTurn()
		r.emit(events.NewToolCallStarted(typedEvent.CallID, typedEvent.Name, string(typedEvent.Args)))
		// Tool calls may await external work; execute off the loop and feed
		// the result back through the queue so loop state stays single-writer.
		go func(call session.FunctionCall) {
			result := r.bridge.Execute(context.Background(), call)
			r.enqueue(toolResultMsg{call: call, result: result})
		}(typedEvent)

	case session.TurnComplete:
		r.finalizeTurn()

	case session.Unknown:
		logger.Debug("Ignoring unclassified session event")
	}
}

func (r *listenRun) handleToolResult(call session.FunctionCall, result toolResult) {
	if err := r.transport.SendToolResponse(call.CallID, call.Name, result.Response); err != nil {
		logger.Debug("Failed to report tool response", "tool", call.Name, "error", err)
	}

	switch result.Response["result"] {
	case "throttled":
		r.emit(events.NewToolCallThrottled(call.CallID, call.Name))
		return
	case "error":
		message, _ := result.Response["message"].(string)
		r.emit(events.NewToolCallFailed(call.CallID, call.Name, message))
	default:
		r.emit(events.NewToolCallCompleted(call.CallID, call.Name, result.Summary))
	}

	if r.turn != nil && result.Summary != "" {
		r.turn.addToolSummary(result.Summary)
	}
}

// ensureTurn returns the open turn, creating one when downlink events arrive
// before local voice detection opened it. Every created turn announces its
// start, so observers see a start for every end or finalize they receive.
func (r *listenRun) ensureTurn() *activeTurn {
	if r.turn == nil || r.turn.finalized {
		r.turn = newActiveTurn(time.Now())
		r.emit(events.NewUserTurnStarted(r.turn.id, r.turn.startedAt))
	}
	return r.turn
}

// finalizeTurn assembles and emits the completed-turn record. Duplicate
// turn-complete signals find nothing to do.
func (r *listenRun) finalizeTurn() {
	if r.turn == nil {
		return
	}

	record, ok := r.turn.finalize()
	if !ok {
		return
	}

	r.emit(events.NewTurnFinalized(record.ID))
	if r.opts.onAiTurnComplete != nil {
		r.opts.onAiTurnComplete(*record)
	}

	r.turn = nil
	r.capturing.Store(false)
	r.emitState()
}
