package player

import "errors"

// Command errors. These are reported synchronously to the control surface
// and never mutate player state.
var (
	ErrNoVoiceConnection = errors.New("no active voice connection")
	ErrQueueEmpty        = errors.New("nothing is playing")
	ErrInvalidVolume     = errors.New("volume must be between 0 and 100")
)

// Playback errors distinguish a dying stream from a stream that never
// started. Both trigger one bounded retry of the same track.
var (
	ErrConnectionLost = errors.New("voice connection lost mid-stream")
	ErrDecodeFailure  = errors.New("audio decode failed")
)
