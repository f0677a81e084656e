// Package events defines the typed engine event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_turn.*
//   - model_reply.*
//   - tool_call.*
//   - playback.*
//
// Semantics used across the package:
//
//   - Frame: binary audio frame/chunk payload.
//   - Delta: append-only text piece emitted in stream order.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text/state for the current turn phase.
//
// user_turn events
//
//   - UserTurnStarted (user_turn.started): speech detected, a turn opened.
//   - UserTranscriptUpdated (user_turn.transcript_updated): transcription
//     delta for the user's speech; IsFinal marks the utterance as committed.
//   - UserTurnEnded (user_turn.ended): the user stopped speaking.
//   - UserAudioCaptured (user_turn.audio_captured): the captured utterance
//     as a WAV blob, emitted only when the capture clears the loudness gate.
//
// model_reply events
//
//   - ModelTextDelta (model_reply.text_delta): streamed reply text piece.
//   - ModelAudioFrame (model_reply.audio_frame): synthesized reply audio.
//   - TurnFinalized (model_reply.turn_finalized): the exchange is assembled
//     and the completed-turn record was emitted.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.started): tool execution started.
//   - ToolCallCompleted (tool_call.completed): tool execution completed.
//   - ToolCallFailed (tool_call.failed): tool execution failed.
//   - ToolCallThrottled (tool_call.throttled): a mutating canvas call was
//     rejected by the rate limit and produced no side effects.
//
// playback events
//
//   - PlaybackScheduled (playback.scheduled): a reply chunk was placed on the
//     output clock.
//   - PlaybackDrained (playback.drained): the output queue ran empty.
package events
