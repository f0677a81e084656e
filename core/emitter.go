package engine

import "github.com/voxboard/voxboard-core/core/events"

type eventEmitter func(events.Event)

func newCallbackEventEmitter(opts ListenOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.UserTurnStarted:
			if opts.onUserTurnStart != nil {
				opts.onUserTurnStart(typedEvent.TurnID, typedEvent.StartedAt)
			}
		case events.UserTranscriptUpdated:
			if opts.onUserTranscriptDelta != nil {
				opts.onUserTranscriptDelta(typedEvent.TurnID, typedEvent.Transcript, typedEvent.IsFinal)
			}
		case events.UserTurnEnded:
			if opts.onUserTurnEnd != nil {
				opts.onUserTurnEnd(typedEvent.TurnID, typedEvent.EndedAt)
			}
		case events.UserAudioCaptured:
			if opts.onUserAudio != nil {
				opts.onUserAudio(typedEvent.WAV)
			}
		case events.ModelAudioFrame:
			if opts.onAiAudioChunk != nil {
				opts.onAiAudioChunk(typedEvent.TurnID, typedEvent.Samples, typedEvent.SampleRate)
			}
		}
	}
}
