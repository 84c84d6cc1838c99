package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// writeTimeout bounds each individual SSE write.
const writeTimeout = 30 * time.Second

// client manages a single SSE connection's write operations.
type client struct {
	w       io.Writer
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// sendEvent marshals v as JSON and sends it as a named SSE event.
// SSE format: "event: name\ndata: {json}\n\n"
func (c *client) sendEvent(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	n, err := c.write(formatEvent(event, data))
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.messagesSent++
	c.bytesSent += int64(n)
	return nil
}

// sendKeepalive sends an SSE comment line to keep the connection alive.
// SSE comment format: ":\n\n"
func (c *client) sendKeepalive() error {
	n, err := c.write(":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	c.bytesSent += int64(n)
	return nil
}

func (c *client) sendRetry(ms int) error {
	_, err := c.write(formatRetry(ms))
	return err
}

func (c *client) write(s string) (int, error) {
	// Extend write deadline before each write to prevent timeout on long-lived connections.
	if c.rc != nil {
		if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			c.logger.Debug("could not set write deadline", "error", err)
		}
	}
	n, err := io.WriteString(c.w, s)
	if err != nil {
		return n, err
	}
	c.flusher.Flush()
	return n, nil
}

func formatEvent(event string, data []byte) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}
