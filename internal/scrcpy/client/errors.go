package client

import "github.com/pkg/errors"

var (
	// ErrNotConnected is returned by operations that need a live session
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by Connect on a live client
	ErrAlreadyConnected = errors.New("already connected")
	// ErrNoVideo is returned by frame operations on audio-only sessions
	ErrNoVideo = errors.New("video stream not enabled")
	// ErrNoAudio is returned by audio operations without an audio stream
	ErrNoAudio = errors.New("audio stream not enabled")
	// ErrTimeout is returned when a device reply does not arrive in time
	ErrTimeout = errors.New("timed out waiting for device reply")
	// ErrBadArgument flags invalid caller input
	ErrBadArgument = errors.New("bad argument")
)
