package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// progressFrame is the subset of hub messages the watcher prints
type progressFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	OwnerID   string `json:"owner_id"`
	RecordID  string `json:"record_id"`
	Stage     string `json:"stage"`
	Detail    string `json:"detail"`
	Message   string `json:"message"`
}

func newWatchCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream ingest progress for the token's owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := c.v.GetString("token")
			if token == "" {
				return fmt.Errorf("--token is required to watch progress")
			}

			wsURL, err := websocketURL(c.v.GetString("server"))
			if err != nil {
				return err
			}

			header := http.Header{}
			header.Set("Authorization", "Bearer "+token)
			conn, resp, err := websocket.DefaultDialer.DialContext(cmd.Context(), wsURL, header)
			if err != nil {
				if resp != nil {
					return fmt.Errorf("websocket connection failed with status %d: %w", resp.StatusCode, err)
				}
				return fmt.Errorf("websocket connection failed: %w", err)
			}
			defer conn.Close()

			go func() {
				<-cmd.Context().Done()
				conn.Close()
			}()

			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if cmd.Context().Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						return nil
					}
					return fmt.Errorf("progress stream closed: %w", err)
				}
				printFrame(cmd.OutOrStdout(), data)
			}
		},
	}
}

// websocketURL turns the server base URL into its /ws endpoint
func websocketURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String(), nil
}

func printFrame(out io.Writer, data []byte) {
	var frame progressFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		fmt.Fprintf(out, "%s\n", data)
		return
	}

	switch frame.Type {
	case "connected":
		fmt.Fprintf(out, "connected as %s\n", frame.OwnerID)
	case "ingest_progress":
		line := fmt.Sprintf("%s %-16s", frame.Timestamp, frame.Stage)
		if frame.RecordID != "" {
			line += " record=" + frame.RecordID
		}
		if frame.Detail != "" {
			line += " " + frame.Detail
		}
		fmt.Fprintln(out, line)
	case "error":
		fmt.Fprintf(out, "error: %s\n", frame.Message)
	default:
		fmt.Fprintf(out, "%s\n", data)
	}
}
