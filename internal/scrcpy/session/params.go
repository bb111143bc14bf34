package session

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var scidRe = regexp.MustCompile(`^[0-9a-f]{8}$`)

// ServerParams renders the space-joined k=v list passed to the on-device
// server after the version argument.
type ServerParams struct {
	SCID              string
	LogLevel          string
	Video             bool
	Audio             bool
	Control           bool
	TunnelForward     bool
	ClipboardAutosync bool
	VideoCodec        string
	AudioCodec        string
	VideoBitRate      int
	MaxFPS            int
	MaxSize           int
	StayAwake         bool
	ListApps          bool
}

// Validate checks the formatting constraints the server enforces
func (p *ServerParams) Validate() error {
	if !scidRe.MatchString(p.SCID) {
		return errors.Errorf("scid must be 8 lowercase hex digits, got %q", p.SCID)
	}
	if p.MaxSize < 0 || p.VideoBitRate < 0 || p.MaxFPS < 0 {
		return errors.New("negative server parameter")
	}
	return nil
}

// Args builds the parameter list. Zero-valued optional fields are omitted;
// max_size is rounded down to a multiple of 8 (encoder alignment).
func (p *ServerParams) Args() []string {
	logLevel := p.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}
	args := []string{
		"scid=" + p.SCID,
		"log_level=" + logLevel,
		fmt.Sprintf("video=%t", p.Video),
		fmt.Sprintf("audio=%t", p.Audio),
		fmt.Sprintf("control=%t", p.Control),
		fmt.Sprintf("tunnel_forward=%t", p.TunnelForward),
		fmt.Sprintf("clipboard_autosync=%t", p.ClipboardAutosync),
	}
	if p.VideoCodec != "" {
		args = append(args, "video_codec="+p.VideoCodec)
	}
	if p.AudioCodec != "" {
		args = append(args, "audio_codec="+p.AudioCodec)
	}
	if p.VideoBitRate > 0 {
		args = append(args, "video_bit_rate="+strconv.Itoa(p.VideoBitRate))
	}
	if p.MaxFPS > 0 {
		args = append(args, "max_fps="+strconv.Itoa(p.MaxFPS))
	}
	if p.MaxSize > 0 {
		args = append(args, "max_size="+strconv.Itoa(p.MaxSize&^7))
	}
	if p.StayAwake {
		args = append(args, "stay_awake=true")
	}
	if p.ListApps {
		args = append(args, "list_apps=true")
	}
	return args
}
