package client

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidcast/droidcast/internal/scrcpy/decode"
	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

func TestAudioRecordingStopsAtMaxDuration(t *testing.T) {
	c := New(nil, nil)
	connectedStub(c)
	c.audioDec = newRawAudioDecoder(t)

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, c.StartAudioRecording(path, 50*time.Millisecond, false))

	c.mu.Lock()
	active := c.audioRecorder != nil
	c.mu.Unlock()
	require.True(t, active)

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.audioRecorder == nil
	}, time.Second, 10*time.Millisecond)

	// The timer already stopped it; a manual stop must now fail
	assert.Error(t, c.StopAudioRecording())
}

func TestAudioRecordingWithoutMaxDurationKeepsRunning(t *testing.T) {
	c := New(nil, nil)
	connectedStub(c)
	c.audioDec = newRawAudioDecoder(t)

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, c.StartAudioRecording(path, 0, false))

	time.Sleep(100 * time.Millisecond)
	c.mu.Lock()
	active := c.audioRecorder != nil
	timer := c.audioRecTimer
	c.mu.Unlock()
	assert.True(t, active)
	assert.Nil(t, timer)

	require.NoError(t, c.StopAudioRecording())
}

func TestVideoRecordingRejectsFormatMismatch(t *testing.T) {
	c := New(nil, nil)
	connectedStub(c)
	c.sess.VideoCodec = protocol.CodecIDH264
	dec, err := decode.NewVideoDecoder(make(chan *protocol.Packet), protocol.CodecIDH264, 1080, 2400)
	require.NoError(t, err)
	c.videoDec = dec

	c.mu.Lock()
	err = c.startVideoRecordingLocked(filepath.Join(t.TempDir(), "out.h265"), "h265")
	c.mu.Unlock()
	assert.ErrorIs(t, err, ErrBadArgument)

	c.mu.Lock()
	err = c.startVideoRecordingLocked(filepath.Join(t.TempDir(), "out.h264"), "h264")
	c.mu.Unlock()
	require.NoError(t, err)
	require.NoError(t, c.StopVideoRecording())
}

func newRawAudioDecoder(t *testing.T) *decode.AudioDecoder {
	t.Helper()
	dec, err := decode.NewAudioDecoder(make(chan *protocol.Packet), protocol.CodecIDRAW)
	require.NoError(t, err)
	return dec
}
