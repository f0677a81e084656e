package gemini

import (
	"encoding/base64"
	"testing"

	"github.com/voxboard/voxboard-core/core/audio"
	"github.com/voxboard/voxboard-core/core/session"
)

func TestNormalizeServerMessageDemuxesContent(t *testing.T) {
	pcm := audio.Int16ToBytes([]int16{100, -200, 300})
	payload := `{
		"serverContent": {
			"modelTurn": {
				"parts": [
					{"text": "Sure, "},
					{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": "` + base64.StdEncoding.EncodeToString(pcm) + `"}}
				]
			},
			"inputTranscription": {"text": "pan left", "finished": true},
			"turnComplete": true
		}
	}`

	events := normalizeServerMessage([]byte(payload))

	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %#v", len(events), events)
	}

	transcript, ok := events[0].(session.InputTranscript)
	if !ok {
		t.Fatalf("expected first event to be InputTranscript, got %T", events[0])
	}
	if transcript.Text != "pan left" || !transcript.IsFinal {
		t.Fatalf("unexpected transcript event: %#v", transcript)
	}

	text, ok := events[1].(session.TextDelta)
	if !ok || text.Text != "Sure, " {
		t.Fatalf("expected text delta, got %#v", events[1])
	}

	chunk, ok := events[2].(session.AudioChunk)
	if !ok {
		t.Fatalf("expected audio chunk, got %T", events[2])
	}
	if chunk.SampleRate != 24000 {
		t.Fatalf("expected 24000 sample rate, got %d", chunk.SampleRate)
	}
	if len(chunk.Samples) != 3 || chunk.Samples[0] != 100 || chunk.Samples[1] != -200 {
		t.Fatalf("unexpected chunk samples: %v", chunk.Samples)
	}

	if _, ok := events[3].(session.TurnComplete); !ok {
		t.Fatalf("expected turn complete, got %T", events[3])
	}
}

func TestNormalizeServerMessageToolCalls(t *testing.T) {
	payload := `{"toolCall": {"functionCalls": [
		{"id": "call-1", "name": "canvas_pan", "args": {"dx": 10, "dy": 0}},
		{"id": "call-2", "name": ""}
	]}}`

	events := normalizeServerMessage([]byte(payload))

	if len(events) != 1 {
		t.Fatalf("expected nameless call dropped, got %d events", len(events))
	}
	call, ok := events[0].(session.FunctionCall)
	if !ok {
		t.Fatalf("expected function call, got %T", events[0])
	}
	if call.CallID != "call-1" || call.Name != "canvas_pan" {
		t.Fatalf("unexpected call: %#v", call)
	}
	if string(call.Args) != `{"dx": 10, "dy": 0}` {
		t.Fatalf("unexpected args: %s", call.Args)
	}
}

func TestNormalizeServerMessageKeepsEmptyFinalTranscription(t *testing.T) {
	payload := `{"serverContent": {"inputTranscription": {"text": "", "finished": true}}}`

	events := normalizeServerMessage([]byte(payload))

	if len(events) != 1 {
		t.Fatalf("expected the finished marker to survive, got %d events", len(events))
	}
	transcript, ok := events[0].(session.InputTranscript)
	if !ok {
		t.Fatalf("expected input transcript, got %T", events[0])
	}
	if transcript.Text != "" || !transcript.IsFinal {
		t.Fatalf("expected empty final transcript, got %#v", transcript)
	}

	// Empty non-final deltas stay dropped.
	for _, event := range normalizeServerMessage([]byte(`{"serverContent": {"inputTranscription": {"text": ""}}}`)) {
		if _, ok := event.(session.InputTranscript); ok {
			t.Fatalf("expected empty partial transcription to be dropped, got %#v", event)
		}
	}
}

func TestNormalizeServerMessageDropsMalformedAudio(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{
			name:    "bad base64",
			payload: `{"serverContent": {"modelTurn": {"parts": [{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": "!!!not-base64!!!"}}]}}}`,
		},
		{
			name:    "non-pcm mime type",
			payload: `{"serverContent": {"modelTurn": {"parts": [{"inlineData": {"mimeType": "audio/ogg", "data": "AAAA"}}]}}}`,
		},
		{
			name:    "empty data",
			payload: `{"serverContent": {"modelTurn": {"parts": [{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": ""}}]}}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events := normalizeServerMessage([]byte(tc.payload))
			for _, event := range events {
				if _, ok := event.(session.AudioChunk); ok {
					t.Fatalf("expected malformed chunk to be dropped, got %#v", event)
				}
			}
		})
	}
}

func TestNormalizeServerMessageUnknownPayload(t *testing.T) {
	events := normalizeServerMessage([]byte(`{"somethingNew": {"x": 1}}`))

	if len(events) != 1 {
		t.Fatalf("expected a single unknown event, got %d", len(events))
	}
	if _, ok := events[0].(session.Unknown); !ok {
		t.Fatalf("expected unknown event, got %T", events[0])
	}
}

func TestNormalizeServerMessageSetupCompleteIsSilent(t *testing.T) {
	if events := normalizeServerMessage([]byte(`{"setupComplete": {}}`)); len(events) != 0 {
		t.Fatalf("expected no events for setup ack, got %d", len(events))
	}

	if events := normalizeServerMessage([]byte(`not json at all`)); len(events) != 0 {
		t.Fatalf("expected undecodable payload to be dropped, got %d", len(events))
	}
}

func TestParseSampleRate(t *testing.T) {
	if got := parseSampleRate("audio/pcm;rate=24000"); got != 24000 {
		t.Fatalf("expected 24000, got %d", got)
	}
	if got := parseSampleRate("audio/pcm;rate=16000"); got != 16000 {
		t.Fatalf("expected 16000, got %d", got)
	}
	if got := parseSampleRate("audio/pcm"); got != audio.PlaybackSampleRate {
		t.Fatalf("expected default playback rate, got %d", got)
	}
}
