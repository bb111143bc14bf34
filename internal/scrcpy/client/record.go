package client

import (
	"time"

	"github.com/pkg/errors"

	"github.com/droidcast/droidcast/internal/scrcpy/decode"
	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

// StartAudioRecording tees the audio stream into a file. Opus streams go into
// a WebM container as-is; raw streams become float32 WAV. A positive
// maxDuration stops the recording automatically when it elapses. When
// playWhileRecording is set the live player is attached first so playback
// latency is unaffected by recorder I/O.
func (c *Client) StartAudioRecording(path string, maxDuration time.Duration, playWhileRecording bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNotConnected
	}
	if c.audioDec == nil {
		return ErrNoAudio
	}
	if c.audioRecorder != nil {
		return errors.New("audio recording already active")
	}

	codec := c.audioDec.Codec()
	switch codec {
	case protocol.CodecIDOPUS:
		rec, err := decode.NewWebMRecorder(path)
		if err != nil {
			return err
		}
		c.audioRecorder = rec
		c.audioSink = rec
	case protocol.CodecIDRAW:
		rate, channels := c.audioDec.Format()
		rec, err := decode.NewWAVRecorder(path, rate, channels)
		if err != nil {
			return err
		}
		c.audioRecorder = rec
		c.audioSink = rec
	default:
		return errors.Errorf("recording not supported for codec %s", protocol.CodecName(codec))
	}

	if playWhileRecording && c.player == nil {
		rate, channels := c.audioDec.Format()
		player, err := decode.NewPlayer(rate, channels)
		if err != nil {
			c.log.Warn("Live playback unavailable", "error", err)
		} else {
			c.player = player
			// Player before recorder: playback is the latency-sensitive leg
			c.audioDec.Sinks().Attach(player)
		}
	}
	c.audioDec.Sinks().Attach(c.audioSink)

	if maxDuration > 0 {
		c.audioRecTimer = time.AfterFunc(maxDuration, func() {
			if err := c.StopAudioRecording(); err == nil {
				c.log.Info("Audio recording reached max duration", "max", maxDuration)
			}
		})
	}

	// Recording needs a flowing stream even under lazy decode
	c.setAudioPausedLocked(false)
	c.log.Info("Audio recording started", "path", path, "codec", protocol.CodecName(codec))
	return nil
}

// StopAudioRecording detaches and finalizes the recorder
func (c *Client) StopAudioRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audioRecorder == nil {
		return errors.New("no audio recording active")
	}
	err := c.stopAudioRecordingLocked()
	if c.lazyDecode && c.sess != nil {
		c.setAudioPausedLocked(true)
	}
	return err
}

func (c *Client) stopAudioRecordingLocked() error {
	if c.audioRecTimer != nil {
		c.audioRecTimer.Stop()
		c.audioRecTimer = nil
	}
	if c.audioDec != nil && c.audioSink != nil {
		c.audioDec.Sinks().Detach(c.audioSink)
	}
	err := c.audioRecorder.Close()
	c.audioRecorder = nil
	c.audioSink = nil
	c.log.Info("Audio recording stopped")
	return err
}

// RecordAudio records for a fixed duration, blocking until done
func (c *Client) RecordAudio(path string, duration time.Duration, playWhileRecording bool) error {
	if duration <= 0 {
		return ErrBadArgument
	}
	if err := c.StartAudioRecording(path, 0, playWhileRecording); err != nil {
		return err
	}
	time.Sleep(duration)
	return c.StopAudioRecording()
}

// StartVideoRecording tees the compressed video stream into an
// elementary-stream file
func (c *Client) StartVideoRecording(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNotConnected
	}
	return c.startVideoRecordingLocked(path, "")
}

func (c *Client) startVideoRecordingLocked(path, format string) error {
	if c.videoDec == nil {
		return ErrNoVideo
	}
	if c.videoRecorder != nil {
		return errors.New("video recording already active")
	}
	// Only the stream's own elementary format comes out of this recorder
	if format != "" && format != protocol.CodecName(c.sess.VideoCodec) {
		return errors.Wrapf(ErrBadArgument, "record format %q does not match stream codec %s",
			format, protocol.CodecName(c.sess.VideoCodec))
	}
	rec, err := decode.NewVideoRecorder(path)
	if err != nil {
		return err
	}
	c.videoRecorder = rec
	c.videoDec.Units().Attach(rec)
	c.setVideoPausedLocked(false)
	c.log.Info("Video recording started", "path", path)
	return nil
}

// StopVideoRecording detaches and closes the video recorder
func (c *Client) StopVideoRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.videoRecorder == nil {
		return errors.New("no video recording active")
	}
	c.videoDec.Units().Detach(c.videoRecorder)
	err := c.videoRecorder.Close()
	c.videoRecorder = nil
	if c.lazyDecode && c.sess != nil {
		c.setVideoPausedLocked(true)
	}
	c.log.Info("Video recording stopped")
	return err
}

// stopRecordersLocked finalizes any active recorders during teardown
func (c *Client) stopRecordersLocked() {
	if c.audioRecorder != nil {
		c.stopAudioRecordingLocked()
	}
	if c.videoRecorder != nil {
		if c.videoDec != nil {
			c.videoDec.Units().Detach(c.videoRecorder)
		}
		c.videoRecorder.Close()
		c.videoRecorder = nil
	}
}
