package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/satriahrh/tawa/adapters/httpclient"
	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/internal/recorder"
)

// uploadTimeout covers transcription plus the full emotion poll budget
const uploadTimeout = 3 * time.Minute

type upload struct {
	Server      string
	Token       string
	UserID      string
	Filename    string
	ContentType string
	Name        string
	Duration    float64
	Data        []byte
}

// send posts the recording as multipart form data and returns the response body
func (u upload) send(ctx context.Context, client *http.Client) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if u.UserID != "" {
		w.WriteField("userId", u.UserID)
	}
	if u.Name != "" {
		w.WriteField("name", u.Name)
	}
	if u.Duration > 0 {
		w.WriteField("duration", strconv.FormatFloat(u.Duration, 'f', 2, 64))
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, u.Filename))
	h.Set("Content-Type", u.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio part: %w", err)
	}
	if _, err := part.Write(u.Data); err != nil {
		return nil, fmt.Errorf("failed to write audio part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	url := strings.TrimRight(u.Server, "/") + "/api/v1/recordings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if u.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.StatusError("tawa", resp)
	}
	return io.ReadAll(resp.Body)
}

// printJSON indents a JSON response for the terminal
func printJSON(out io.Writer, raw []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		_, werr := out.Write(raw)
		return werr
	}
	pretty.WriteByte('\n')
	_, err := pretty.WriteTo(out)
	return err
}

func contentTypeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return entities.ContentTypeWAV
	case ".webm":
		return entities.ContentTypeWebM
	case ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

func newUploadCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an existing audio file for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, user, err := c.identity()
			if err != nil {
				return err
			}

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			var duration float64
			if info, err := recorder.ParseWAVHeader(data); err == nil {
				duration = info.Duration()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), uploadTimeout)
			defer cancel()

			resp, err := upload{
				Server:      c.v.GetString("server"),
				Token:       token,
				UserID:      user,
				Filename:    filepath.Base(path),
				ContentType: contentTypeForFile(path),
				Name:        c.v.GetString("name"),
				Duration:    duration,
				Data:        data,
			}.send(ctx, httpclient.New(uploadTimeout))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().String("name", "", "recording name")
	return cmd
}
