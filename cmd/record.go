package cmd

import (
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/droidcast/droidcast/internal/scrcpy/client"
)

// NewRecordCommand records the video or audio stream for a fixed duration
func NewRecordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <file>",
		Short: "Record video or audio for a fixed duration",
		Long: `Records the video stream to an H.264/H.265 elementary-stream file, or with
--audio the audio stream (Opus into WebM, raw PCM into WAV).`,
		Args: cobra.ExactArgs(1),
		RunE: runRecord,
	}
	addStreamFlags(cmd)
	cmd.Flags().Duration("duration", 10*time.Second, "Recording duration")
	cmd.Flags().Bool("audio", false, "Record audio instead of video")
	cmd.Flags().Bool("play", false, "Play audio through the speakers while recording")
	return cmd
}

func runRecord(cmd *cobra.Command, args []string) error {
	driver, err := newAdb()
	if err != nil {
		return err
	}
	duration, _ := cmd.Flags().GetDuration("duration")
	if duration <= 0 {
		return errors.New("duration must be positive")
	}
	audio, _ := cmd.Flags().GetBool("audio")
	play, _ := cmd.Flags().GetBool("play")

	cfg := sessionConfigFromFlags(cmd)
	if audio {
		cfg.Audio = true
	} else {
		// Video-only capture does not need the audio stream unless asked for
		cfg.LazyDecode = false
	}

	c := client.New(driver, nil)
	if err := c.Connect(cfg); err != nil {
		return err
	}
	defer c.Disconnect()

	if audio {
		if err := c.RecordAudio(args[0], duration, play); err != nil {
			return err
		}
	} else {
		if err := c.StartVideoRecording(args[0]); err != nil {
			return err
		}
		time.Sleep(duration)
		if err := c.StopVideoRecording(); err != nil {
			return err
		}
	}
	color.Green("Recorded %s to %s", duration, args[0])
	return nil
}
