package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerParamsValidate(t *testing.T) {
	p := &ServerParams{SCID: "0361ff2e"}
	assert.NoError(t, p.Validate())

	for _, bad := range []string{"", "0361FF2E", "361ff2e", "0361ff2e9", "zzzzzzzz"} {
		p := &ServerParams{SCID: bad}
		assert.Error(t, p.Validate(), bad)
	}
}

func TestServerParamsArgs(t *testing.T) {
	p := &ServerParams{
		SCID:              "0361ff2e",
		Video:             true,
		Audio:             true,
		Control:           true,
		TunnelForward:     true,
		ClipboardAutosync: true,
		VideoCodec:        "h264",
		AudioCodec:        "opus",
		VideoBitRate:      8000000,
		MaxFPS:            60,
		StayAwake:         true,
	}
	args := p.Args()
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "scid=0361ff2e")
	assert.Contains(t, joined, "log_level=info")
	assert.Contains(t, joined, "tunnel_forward=true")
	assert.Contains(t, joined, "clipboard_autosync=true")
	assert.Contains(t, joined, "video_bit_rate=8000000")
	assert.Contains(t, joined, "max_fps=60")
	assert.Contains(t, joined, "stay_awake=true")
	assert.NotContains(t, joined, "max_size")
	assert.NotContains(t, joined, "list_apps")
}

func TestServerParamsMaxSizeRounding(t *testing.T) {
	p := &ServerParams{SCID: "00000000", MaxSize: 1923}
	assert.Contains(t, p.Args(), "max_size=1920")

	p.MaxSize = 1920
	assert.Contains(t, p.Args(), "max_size=1920")
}

func TestStreamSocketNames(t *testing.T) {
	s := &Session{SocketName: "scrcpy_0361ff2e"}

	s.Config = Config{Video: true, Audio: true, Control: true}
	assert.Equal(t,
		[]string{"scrcpy_0361ff2e", "scrcpy_0361ff2e_audio", "scrcpy_0361ff2e_control"},
		s.streamSocketNames())

	s.Config = Config{Video: true, Control: true}
	assert.Equal(t,
		[]string{"scrcpy_0361ff2e", "scrcpy_0361ff2e_control"},
		s.streamSocketNames())

	// The first enabled stream always takes the base name
	s.Config = Config{Audio: true, Control: true}
	assert.Equal(t,
		[]string{"scrcpy_0361ff2e", "scrcpy_0361ff2e_control"},
		s.streamSocketNames())
}

func TestNewSCIDIs31Bit(t *testing.T) {
	for i := 0; i < 1000; i++ {
		scid := newSCID()
		require.LessOrEqual(t, scid, uint32(0x7FFFFFFF))
	}
}
