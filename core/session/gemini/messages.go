package gemini

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/voxboard/voxboard-core/core/audio"
	"github.com/voxboard/voxboard-core/core/session"
)

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string            `json:"model"`
	GenerationConfig         *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *content          `json:"systemInstruction,omitempty"`
	Tools                    []toolPayload     `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type toolPayload struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	Audio          *inlineData `json:"audio,omitempty"`
	AudioStreamEnd bool        `json:"audioStreamEnd,omitempty"`
}

type toolResponseMessage struct {
	ToolResponse toolResponse `json:"toolResponse"`
}

type toolResponse struct {
	FunctionResponses []functionResponse `json:"functionResponses"`
}

type functionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	ToolCall      *toolCall      `json:"toolCall,omitempty"`
	GoAway        *struct{}      `json:"goAway,omitempty"`
}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text     string `json:"text"`
	Finished bool   `json:"finished,omitempty"`
}

type toolCall struct {
	FunctionCalls []functionCall `json:"functionCalls"`
}

type functionCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// normalizeServerMessage demultiplexes one raw downlink payload into the
// engine-facing event set. Malformed audio chunks are dropped rather than
// surfaced; a payload that parses but matches nothing known comes back as a
// single session.Unknown.
func normalizeServerMessage(data []byte) []session.Event {
	var message serverMessage
	if err := json.Unmarshal(data, &message); err != nil {
		logger.Debug("dropping undecodable downlink message", "error", err)
		return nil
	}

	var events []session.Event

	if message.ToolCall != nil {
		for _, call := range message.ToolCall.FunctionCalls {
			if call.Name == "" {
				continue
			}
			events = append(events, session.FunctionCall{
				CallID: call.ID,
				Name:   call.Name,
				Args:   call.Args,
			})
		}
	}

	if serverContent := message.ServerContent; serverContent != nil {
		// An empty finished transcription still carries the one-time turn-end
		// signal, so only empty non-final deltas are dropped.
		if t := serverContent.InputTranscription; t != nil && (t.Text != "" || t.Finished) {
			events = append(events, session.InputTranscript{Text: t.Text, IsFinal: t.Finished})
		}

		if serverContent.ModelTurn != nil {
			for _, part := range serverContent.ModelTurn.Parts {
				if part.Text != "" {
					events = append(events, session.TextDelta{Text: part.Text})
				}
				if chunk, ok := normalizeAudioPart(part.InlineData); ok {
					events = append(events, chunk)
				}
			}
		}

		if t := serverContent.OutputTranscription; t != nil && t.Text != "" {
			events = append(events, session.TextDelta{Text: t.Text})
		}

		if serverContent.TurnComplete {
			events = append(events, session.TurnComplete{})
		}
	}

	if events == nil && message.SetupComplete == nil && message.GoAway == nil {
		events = append(events, session.Unknown{Raw: json.RawMessage(data)})
	}

	return events
}

// normalizeAudioPart converts an inline audio payload to PCM16 samples at its
// declared rate. Chunks with missing data, undecodable base64, or non-PCM
// mime types are dropped.
func normalizeAudioPart(data *inlineData) (session.AudioChunk, bool) {
	if data == nil || data.Data == "" {
		return session.AudioChunk{}, false
	}

	if !strings.HasPrefix(data.MimeType, "audio/pcm") {
		return session.AudioChunk{}, false
	}

	raw, err := base64.StdEncoding.DecodeString(data.Data)
	if err != nil {
		logger.Debug("dropping undecodable audio chunk", "error", err)
		return session.AudioChunk{}, false
	}
	if len(raw) < 2 {
		return session.AudioChunk{}, false
	}

	return session.AudioChunk{
		Samples:    audio.BytesToInt16(raw),
		SampleRate: parseSampleRate(data.MimeType),
	}, true
}

func parseSampleRate(mimeType string) int {
	const rateParam = "rate="
	if idx := strings.Index(mimeType, rateParam); idx >= 0 {
		rate := 0
		for _, r := range mimeType[idx+len(rateParam):] {
			if r < '0' || r > '9' {
				break
			}
			rate = rate*10 + int(r-'0')
		}
		if rate > 0 {
			return rate
		}
	}
	return audio.PlaybackSampleRate
}
