package decode

import "fmt"

// DecoderInitError reports that a codec decoder could not be set up, either
// because the ffmpeg build lacks it or because the context rejected it.
type DecoderInitError struct {
	Codec string
	Cause error
}

func (e *DecoderInitError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("no decoder available for %s", e.Codec)
	}
	return fmt.Sprintf("decoder init failed for %s: %v", e.Codec, e.Cause)
}

func (e *DecoderInitError) Unwrap() error { return e.Cause }

// DecodeError reports a failure decoding one access unit or audio packet.
// The stream keeps going; the decoder counts these and moves on.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode failed: %v", e.Cause) }

func (e *DecodeError) Unwrap() error { return e.Cause }
