package events

import "time"

const (
	// KindPlaybackScheduled identifies a reply chunk placed on the output clock.
	KindPlaybackScheduled Kind = "playback.scheduled"
	// KindPlaybackDrained identifies the output queue running empty.
	KindPlaybackDrained Kind = "playback.drained"
)

// PlaybackScheduled marks one reply chunk placed on the output clock.
type PlaybackScheduled struct {
	Base
	StartAt  time.Time
	Duration time.Duration
}

// NewPlaybackScheduled creates a playback scheduled event.
func NewPlaybackScheduled(startAt time.Time, duration time.Duration) PlaybackScheduled {
	return PlaybackScheduled{Base: NewBase(KindPlaybackScheduled), StartAt: startAt, Duration: duration}
}

// PlaybackDrained marks the output queue running empty.
type PlaybackDrained struct{ Base }

// NewPlaybackDrained creates a playback drained event.
func NewPlaybackDrained() PlaybackDrained {
	return PlaybackDrained{Base: NewBase(KindPlaybackDrained)}
}
