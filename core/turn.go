package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/voxboard/voxboard-core/core/audio"
)

const (
	// DefaultAudioGateRMS and DefaultAudioGatePeak decide whether captured
	// user audio is loud enough to hand to the caller at all. Empirically
	// tuned alongside the segmenter thresholds.
	DefaultAudioGateRMS  = 0.008
	DefaultAudioGatePeak = 0.02
)

// Turn is the completed record of one user utterance and the model's reply.
type Turn struct {
	ID          string
	StartedAt   time.Time
	UserEndedAt *time.Time

	// Text is the model's assembled reply text.
	Text string
	// UserTranscript is the merged transcription of the user's speech.
	UserTranscript string
	// ToolSummary lists human-readable summaries of tool calls made during
	// the turn, in execution order.
	ToolSummary []string

	// Audio is the model's reply speech as a WAV blob, empty if the model
	// sent no audio.
	Audio           []byte
	AudioSampleRate int
}

// activeTurn accumulates one in-flight exchange. It is only ever touched by
// the engine run loop, so it carries no locking; the finalized flag guards
// duplicate turn-complete signals instead.
type activeTurn struct {
	id        string
	startedAt time.Time

	userEndedAt *time.Time

	userTranscript string
	modelText      string
	toolSummaries  []string

	userAudio []int16

	modelAudio     [][]int16
	modelAudioRate int

	finalized bool
}

func newActiveTurn(startedAt time.Time) *activeTurn {
	return &activeTurn{
		id:             uuid.NewString(),
		startedAt:      startedAt,
		modelAudioRate: audio.PlaybackSampleRate,
	}
}

// mergeTranscript folds a transcription delta into the accumulated text.
// The merge is idempotent: folding the same delta twice changes nothing.
func mergeTranscript(current, incoming string) string {
	if incoming == "" {
		return current
	}
	if current == "" {
		return incoming
	}
	if strings.HasPrefix(incoming, current) {
		return incoming
	}
	if strings.Contains(current, incoming) {
		return current
	}
	return current + "\n" + incoming
}

func (t *activeTurn) applyUserTranscript(text string) {
	t.userTranscript = mergeTranscript(t.userTranscript, text)
}

func (t *activeTurn) applyModelText(delta string) {
	t.modelText += delta
}

func (t *activeTurn) addToolSummary(summary string) {
	if summary == "" {
		return
	}
	t.toolSummaries = append(t.toolSummaries, summary)
}

func (t *activeTurn) addUserAudio(samples []int16) {
	t.userAudio = append(t.userAudio, samples...)
}

func (t *activeTurn) addModelAudio(samples []int16, sampleRate int) {
	t.modelAudio = append(t.modelAudio, samples)
	if sampleRate > 0 {
		t.modelAudioRate = sampleRate
	}
}

// markUserEnded records the end of the user's utterance. Set once; repeated
// final transcription deltas are ignored.
func (t *activeTurn) markUserEnded(at time.Time) bool {
	if t.userEndedAt != nil {
		return false
	}
	t.userEndedAt = &at
	return true
}

// userAudioPassesGate reports whether the captured audio is loud enough to
// hand out. Below-gate audio is a transient non-event, not an error.
func (t *activeTurn) userAudioPassesGate() bool {
	if len(t.userAudio) == 0 {
		return false
	}

	samples := audio.Int16ToFloat(t.userAudio)
	return audio.RMS(samples) >= DefaultAudioGateRMS || audio.Peak(samples) >= DefaultAudioGatePeak
}

// userAudioWAV returns the captured utterance as a WAV blob at the canonical
// input rate.
func (t *activeTurn) userAudioWAV() []byte {
	return audio.EncodeWAV(t.userAudio, audio.DefaultSampleRate)
}

// finalize assembles the completed-turn record exactly once. Overlapping or
// duplicate turn-complete signals find the flag already set and get nothing.
func (t *activeTurn) finalize() (*Turn, bool) {
	if t.finalized {
		return nil, false
	}
	t.finalized = true

	record := Turn{
		ID:             t.id,
		StartedAt:      t.startedAt,
		Text:           t.modelText,
		UserTranscript: t.userTranscript,
	}

	if t.userEndedAt != nil {
		endedAt := *t.userEndedAt
		record.UserEndedAt = &endedAt
	}

	// Deep-copy the summaries so the emitted record cannot alias turn state
	// that is about to be cleared.
	if len(t.toolSummaries) > 0 {
		if err := copier.CopyWithOption(&record.ToolSummary, &t.toolSummaries, copier.Option{DeepCopy: true}); err != nil {
			record.ToolSummary = append([]string(nil), t.toolSummaries...)
		}
	}

	if total := t.modelAudioLen(); total > 0 {
		flat := make([]int16, 0, total)
		for _, chunk := range t.modelAudio {
			flat = append(flat, chunk...)
		}
		record.Audio = audio.EncodeWAV(flat, t.modelAudioRate)
		record.AudioSampleRate = t.modelAudioRate
	}

	return &record, true
}

func (t *activeTurn) modelAudioLen() int {
	total := 0
	for _, chunk := range t.modelAudio {
		total += len(chunk)
	}
	return total
}
