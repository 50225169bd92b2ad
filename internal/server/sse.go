package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/transcript-archiver/internal/types"
)

// Event names on a progress stream.
const (
	eventProgress = "progress"
	eventComplete = "complete"
	eventError    = "error"
)

// progressStream writes run snapshots as server-sent events.
type progressStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// newProgressStream commits the event-stream headers. The write deadline is
// cleared because a stream lives as long as its run.
func newProgressStream(w http.ResponseWriter, origin string) (*progressStream, error) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	if origin == "" {
		origin = "*"
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", origin)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return &progressStream{w: w, rc: rc}, nil
}

// Progress sends a snapshot tagged with its registry version, so a client
// reconnecting with Last-Event-ID can tell whether it missed an update.
func (s *progressStream) Progress(version uint64, p types.RunProgress) error {
	return s.send(strconv.FormatUint(version, 10), eventProgress, p)
}

// Complete sends the final summary of a terminal run.
func (s *progressStream) Complete(p types.RunProgress) error {
	return s.send("", eventComplete, map[string]any{
		"run_id":  p.ID,
		"status":  p.Status,
		"summary": p.Summary(),
	})
}

func (s *progressStream) Error(message string) error {
	return s.send("", eventError, map[string]string{"error": message})
}

func (s *progressStream) send(id, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(s.w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}
