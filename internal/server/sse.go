package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/signalbox/internal/trace"
)

const (
	heartbeatInterval = 15 * time.Second
	streamWindow      = 64
)

// handleEvents streams newly recorded traces as server-sent events.
func (s *Server) handleEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
	c.Writer.Flush()

	// Only traces recorded after the client connected are streamed.
	var lastSeen uint64
	if recent := s.opts.Traces.Recent(1); len(recent) > 0 {
		lastSeen = recent[0].Seq
	}

	ctx := c.Request.Context()
	ticker := time.NewTicker(s.opts.PollInterval)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case <-ticker.C:
			fresh := newerThan(s.opts.Traces.Recent(streamWindow), lastSeen)
			if len(fresh) == 0 {
				continue
			}
			lastSeen = fresh[len(fresh)-1].Seq
			for _, t := range fresh {
				writeSSE(c.Writer, "trace", t)
			}
			c.Writer.Flush()
		}
	}
}

// newerThan returns the traces with a sequence number above lastSeen,
// oldest first. recent is newest first.
func newerThan(recent []trace.AgentTrace, lastSeen uint64) []trace.AgentTrace {
	var out []trace.AgentTrace
	for _, t := range recent {
		if t.Seq <= lastSeen {
			break
		}
		out = append(out, t)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
