package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/config"
	"github.com/droidcast/droidcast/internal/adb"
	"github.com/droidcast/droidcast/internal/scrcpy/session"
)

// newAdb builds the adb driver from configuration
func newAdb() (*adb.Adb, error) {
	timeout := time.Duration(config.GetFloat64("session.connection_timeout") * float64(time.Second))
	return adb.New(config.GetAdbPath(), timeout)
}

// serverBlobPath resolves the server blob location
func serverBlobPath() string {
	return config.GetServerBlob()
}

// sessionConfigFromFlags builds the session config from viper defaults plus
// per-command flag overrides.
func sessionConfigFromFlags(cmd *cobra.Command) session.Config {
	serial, _ := cmd.Flags().GetString("serial")
	cfg := session.Config{
		Serial:              serial,
		Video:               config.GetBool("session.video"),
		Audio:               config.GetBool("session.audio"),
		Control:             config.GetBool("session.control"),
		VideoCodec:          config.GetString("session.codec"),
		AudioCodec:          config.GetString("session.audio_codec"),
		Bitrate:             config.GetInt("session.bitrate"),
		MaxFPS:              config.GetInt("session.max_fps"),
		LazyDecode:          config.GetBool("session.lazy_decode"),
		StayAwake:           config.GetBool("session.stay_awake"),
		ClipboardAutosync:   config.GetBool("session.clipboard_autosync"),
		Tcpip:               config.GetBool("tcpip.enabled"),
		TcpipPort:           config.GetInt("tcpip.port"),
		TcpipAutoDisconnect: config.GetBool("tcpip.auto_disconnect"),
		PortStart:           config.GetInt("session.port"),
		PortEnd:             config.GetInt("session.port_range_end"),
		ServerBlob:          serverBlobPath(),
		ServerVersion:       config.GetServerVersion(),
		ConnectionTimeout:   time.Duration(config.GetFloat64("session.connection_timeout") * float64(time.Second)),
		SocketTimeout:       time.Duration(config.GetFloat64("session.socket_timeout") * float64(time.Second)),
	}

	if cmd.Flags().Changed("no-audio") {
		cfg.Audio = false
	}
	if cmd.Flags().Changed("bitrate") {
		cfg.Bitrate, _ = cmd.Flags().GetInt("bitrate")
	}
	if cmd.Flags().Changed("max-fps") {
		cfg.MaxFPS, _ = cmd.Flags().GetInt("max-fps")
	}
	if cmd.Flags().Changed("max-size") {
		cfg.MaxSize, _ = cmd.Flags().GetInt("max-size")
	}
	if cmd.Flags().Changed("codec") {
		cfg.VideoCodec, _ = cmd.Flags().GetString("codec")
	}
	if cmd.Flags().Changed("tcpip") {
		cfg.Tcpip, _ = cmd.Flags().GetBool("tcpip")
	}
	if cmd.Flags().Changed("forward") {
		cfg.ForceForward, _ = cmd.Flags().GetBool("forward")
	}
	if cmd.Flags().Changed("lazy-decode") {
		cfg.LazyDecode, _ = cmd.Flags().GetBool("lazy-decode")
	}
	return cfg
}

// addStreamFlags registers the flags shared by commands that open sessions
func addStreamFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-audio", false, "Disable the audio stream")
	cmd.Flags().Int("bitrate", 0, "Video bitrate in bits/s")
	cmd.Flags().Int("max-fps", 0, "Frame rate cap")
	cmd.Flags().Int("max-size", 0, "Longest-side resolution cap (rounded down to 8)")
	cmd.Flags().String("codec", "", "Video codec: h264, h265, av1")
	cmd.Flags().Bool("tcpip", false, "Enable the parallel TCP/IP path")
	cmd.Flags().Bool("forward", false, "Force forward tunnel mode")
	cmd.Flags().Bool("lazy-decode", false, "Pause decoding while keeping streams drained")
}
