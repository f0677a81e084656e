package engine

import "time"

const (
	// DefaultEnergyThreshold is the frame RMS above which a frame counts as
	// speech. Empirically tuned; calibrate against real hardware before
	// changing.
	DefaultEnergyThreshold = 0.018
	// DefaultMinSpeechFrames is how many consecutive speech frames open a
	// turn. Rejects single-frame spikes.
	DefaultMinSpeechFrames = 2
	// DefaultSilenceHangover is the grace period after the last speech frame
	// before the turn is considered finished. Keeps short pauses inside one
	// turn.
	DefaultSilenceHangover = 900 * time.Millisecond
)

// SegmenterConfig tunes the voice activity segmenter. Zero values fall back
// to the defaults above.
type SegmenterConfig struct {
	EnergyThreshold float64
	MinSpeechFrames int
	SilenceHangover time.Duration
}

func (c SegmenterConfig) withDefaults() SegmenterConfig {
	if c.EnergyThreshold == 0 {
		c.EnergyThreshold = DefaultEnergyThreshold
	}
	if c.MinSpeechFrames == 0 {
		c.MinSpeechFrames = DefaultMinSpeechFrames
	}
	if c.SilenceHangover == 0 {
		c.SilenceHangover = DefaultSilenceHangover
	}
	return c
}

type segmentEdge int

const (
	edgeNone segmentEdge = iota
	edgeStart
	edgeEnd
)

// segmenter classifies capture frames into turn start/end edges. It is a
// plain state machine with two states, silent and capturing; the engine run
// loop is its only caller, so it needs no locking.
type segmenter struct {
	config SegmenterConfig

	capturing   bool
	debounce    int
	lastVoiceAt time.Time

	now func() time.Time
}

func newSegmenter(config SegmenterConfig) *segmenter {
	return &segmenter{config: config.withDefaults(), now: time.Now}
}

// Process classifies one frame by its RMS energy and reports a turn edge.
// A capture stream that never exceeds the threshold produces no edges at all.
func (s *segmenter) Process(rms float64) segmentEdge {
	now := s.now()

	if rms >= s.config.EnergyThreshold {
		if s.debounce < s.config.MinSpeechFrames {
			s.debounce++
		}
		s.lastVoiceAt = now

		if !s.capturing && s.debounce >= s.config.MinSpeechFrames {
			s.capturing = true
			return edgeStart
		}
		return edgeNone
	}

	s.debounce = 0

	if s.capturing && now.Sub(s.lastVoiceAt) >= s.config.SilenceHangover {
		s.capturing = false
		return edgeEnd
	}

	return edgeNone
}

// IsCapturing reports whether a turn is open. While true, every frame is
// retained, including below-threshold hangover tail frames.
func (s *segmenter) IsCapturing() bool {
	return s.capturing
}

func (s *segmenter) Reset() {
	s.capturing = false
	s.debounce = 0
	s.lastVoiceAt = time.Time{}
}
