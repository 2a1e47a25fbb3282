package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/tawa/adapters/httpclient"
	"github.com/satriahrh/tawa/internal/recorder"
)

const meterWidth = 30

func newRecordCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone until Ctrl-C, then upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.record(cmd)
		},
	}

	flags := cmd.Flags()
	flags.Duration("max", 0, "stop automatically after this long (0 = until Ctrl-C)")
	flags.String("out", "", "also write the WAV to this path")
	flags.Bool("no-upload", false, "only write --out, do not upload")
	flags.String("name", "", "recording name")
	flags.String("ffmpeg", "ffmpeg", "ffmpeg binary")
	flags.String("input-format", recorder.DefaultFormat.InputFormat, "ffmpeg input format (pulse, alsa, avfoundation, dshow)")
	flags.String("device", recorder.DefaultFormat.InputDevice, "ffmpeg input device")
	flags.Int("sample-rate", recorder.DefaultFormat.SampleRate, "capture sample rate")
	return cmd
}

func (c *cli) record(cmd *cobra.Command) error {
	out := c.v.GetString("out")
	noUpload := c.v.GetBool("no-upload")
	if noUpload && out == "" {
		return fmt.Errorf("--no-upload needs --out")
	}

	var token, user string
	if !noUpload {
		var err error
		if token, user, err = c.identity(); err != nil {
			return err
		}
	}

	levels := make(chan recorder.Level, 1)
	session := recorder.NewSession(
		recorder.NewFFmpegCapture(c.v.GetString("ffmpeg")),
		user,
		c.logger,
		recorder.WithFormat(recorder.Format{
			SampleRate:  c.v.GetInt("sample-rate"),
			InputFormat: c.v.GetString("input-format"),
			InputDevice: c.v.GetString("device"),
		}),
		recorder.WithLevelSink(levels),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		return err
	}
	// Stop is a no-op once the recording has been taken.
	defer session.Stop()

	waitForStop(ctx, session, levels, c.v.GetDuration("max"), cmd.ErrOrStderr())

	recording, err := session.Stop()
	if err != nil {
		return err
	}
	if recording == nil || len(recording.Data) == 0 {
		return fmt.Errorf("nothing was recorded")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\nRecorded %.1fs\n", recording.DurationSeconds)

	if out != "" {
		if err := os.WriteFile(out, recording.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		c.logger.Info("Recording saved", zap.String("path", out))
	}
	if noUpload {
		return nil
	}

	uploadCtx, cancel := context.WithTimeout(cmd.Context(), uploadTimeout)
	defer cancel()

	fmt.Fprintln(cmd.ErrOrStderr(), "Analysing...")
	resp, err := upload{
		Server:      c.v.GetString("server"),
		Token:       token,
		UserID:      user,
		Filename:    "recording" + recording.Extension(),
		ContentType: recording.ContentType,
		Name:        c.v.GetString("name"),
		Duration:    recording.DurationSeconds,
		Data:        recording.Data,
	}.send(uploadCtx, httpclient.New(uploadTimeout))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

// waitForStop redraws the elapsed time and level meter until ctx is done or limit passes
func waitForStop(ctx context.Context, session *recorder.Session, levels <-chan recorder.Level, limit time.Duration, out io.Writer) {
	var deadline <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}

	var level recorder.Level
	redraw := time.NewTicker(recorder.DefaultLevelInterval)
	defer redraw.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case level = <-levels:
		case <-redraw.C:
			fmt.Fprintf(out, "\r%s [%s] Ctrl-C to stop", formatElapsed(session.Elapsed()), level.Bar(meterWidth))
		}
	}
}

func formatElapsed(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
