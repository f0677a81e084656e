// Package gemini implements the engine's session transport against the
// Gemini Live bidirectional WebSocket API.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/codes"

	"github.com/voxboard/voxboard-core/core/audio"
	"github.com/voxboard/voxboard-core/core/session"
)

const (
	liveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is used when no model is configured on Connect.
	DefaultModel = "models/gemini-2.0-flash-live-001"

	uplinkMimeType = "audio/pcm;rate=16000"
)

// Client is a session.Transport over the Gemini Live WebSocket protocol.
// One Client carries at most one session; it never reconnects on its own.
type Client struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	stateMu sync.Mutex
	state   session.State

	onEvent func(session.Event)
	onError func(error)

	errorOnce sync.Once
	closeOnce sync.Once
}

var _ session.Transport = (*Client)(nil)

func NewClient() *Client {
	return &Client{state: session.StateIdle}
}

func (c *Client) Connect(ctx context.Context, opts ...session.Option) error {
	ctx, span := tracer.Start(ctx, "connect live session")
	defer span.End()

	options := &session.Options{Model: DefaultModel}
	for _, opt := range opts {
		opt(options)
	}
	if options.Model == "" {
		options.Model = DefaultModel
	}

	c.onEvent = options.EventCallback
	if c.onEvent == nil {
		c.onEvent = func(session.Event) {}
	}
	c.onError = options.ErrorCallback
	if c.onError == nil {
		c.onError = func(error) {}
	}

	c.setState(session.StateConnecting)

	conn, err := connectWebsocket(ctx)
	if err != nil {
		c.setState(session.StateClosed)
		err = fmt.Errorf("failed to open live session socket: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	c.conn = conn

	if err := c.sendSetup(*options); err != nil {
		conn.Close()
		c.setState(session.StateClosed)
		err = fmt.Errorf("failed to send session setup: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c.setState(session.StateActive)
	go c.readAndProcessMessages(ctx, conn)

	return nil
}

func connectWebsocket(ctx context.Context) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("GEMINI_API_KEY")
	if !ok {
		return nil, fmt.Errorf("gemini api key not found")
	}

	liveURL, _ := url.Parse(liveEndpoint)
	queryParams := liveURL.Query()
	queryParams.Set("key", apiKey)
	liveURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, liveURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial live endpoint: %w", err)
	}

	return conn, nil
}

func (c *Client) sendSetup(options session.Options) error {
	setup := setupPayload{
		Model:                    options.Model,
		GenerationConfig:         &generationConfig{ResponseModalities: []string{"AUDIO"}},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}
	if options.SystemInstruction != "" {
		setup.SystemInstruction = &content{Parts: []part{{Text: options.SystemInstruction}}}
	}
	if len(options.Tools) > 0 {
		declarations := make([]functionDeclaration, 0, len(options.Tools))
		for _, tool := range options.Tools {
			declarations = append(declarations, functionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}
		setup.Tools = []toolPayload{{FunctionDeclarations: declarations}}
	}

	return c.writeJSON(setupMessage{Setup: setup})
}

// SendAudio uplinks one PCM16 frame at the canonical input rate. The frame is
// base64-framed and written immediately; nothing is buffered locally.
func (c *Client) SendAudio(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}

	return c.writeJSON(realtimeInputMessage{RealtimeInput: realtimeInput{
		Audio: &inlineData{
			MimeType: uplinkMimeType,
			Data:     base64.StdEncoding.EncodeToString(audio.Int16ToBytes(samples)),
		},
	}})
}

func (c *Client) EndAudioStream() error {
	return c.writeJSON(realtimeInputMessage{RealtimeInput: realtimeInput{AudioStreamEnd: true}})
}

func (c *Client) SendToolResponse(callID, name string, response map[string]any) error {
	return c.writeJSON(toolResponseMessage{ToolResponse: toolResponse{
		FunctionResponses: []functionResponse{{ID: callID, Name: name, Response: response}},
	}})
}

func (c *Client) State() session.State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.setState(session.StateClosed)

		c.connMu.Lock()
		defer c.connMu.Unlock()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

func (c *Client) writeJSON(message any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("live session not connected")
	}
	if err := c.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write to live session: %w", err)
	}
	return nil
}

// readAndProcessMessages is the downlink pump. It runs until the socket dies
// or the context ends; the first unexpected failure is surfaced once through
// the error callback and treated as terminal.
func (c *Client) readAndProcessMessages(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		default:
		}

		// The live endpoint delivers JSON over both text and binary frames.
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.State() != session.StateClosed {
				c.surfaceError(fmt.Errorf("live session receive failed: %w", err))
			}
			c.Close()
			return
		}

		for _, event := range normalizeServerMessage(data) {
			c.onEvent(event)
		}
	}
}

func (c *Client) surfaceError(err error) {
	c.errorOnce.Do(func() {
		logger.Error("live session terminated", "error", err)
		c.onError(err)
	})
}

func (c *Client) setState(state session.State) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
}
