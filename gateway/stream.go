package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haowjy/tandem-llm-go"
	"github.com/haowjy/tandem-llm-go/metrics"
)

// sseWriter is the streaming Sink: every forwarded event becomes one
// `data: <json>` frame flushed immediately. The closing `data: [DONE]`
// sentinel is written exactly once, whether the run completed or failed.
type sseWriter struct {
	w       gin.ResponseWriter
	verbose bool
	closed  bool
}

// newSSEWriter sends the SSE response headers and returns the sink. After
// this point failures can only be reported in-band.
func newSSEWriter(c *gin.Context, verbose bool) *sseWriter {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
	return &sseWriter{w: c.Writer, verbose: verbose}
}

// Send writes one frame for the event. Usage events are suppressed unless
// the request asked for verbose output.
func (s *sseWriter) Send(phase tandem.Phase, ev tandem.Event) error {
	switch ev.Kind {
	case tandem.EventReasoningDelta:
		return s.writeFrame(reasoningFrame(ev.Text))
	case tandem.EventContentDelta:
		return s.writeFrame(contentFrame(ev.Text))
	case tandem.EventUsage:
		if !s.verbose || ev.Usage == nil {
			return nil
		}
		return s.writeFrame(usageFrame(phase, *ev.Usage))
	case tandem.EventError:
		if ev.Err == nil {
			return nil
		}
		metrics.RecordUpstreamError(ev.Err.Provider.String(), string(ev.Err.Kind))
		return s.writeFrame(errorFrame(ev.Err))
	}
	return nil
}

// Complete writes the terminal done frame with the summed usage, then the
// sentinel.
func (s *sseWriter) Complete(total tandem.Usage, byPhase map[tandem.Phase]tandem.Usage) error {
	if err := s.writeFrame(doneFrame(total)); err != nil {
		return err
	}
	return s.sentinel()
}

// Fail writes the fatal error frame as the terminal frame, then the
// sentinel.
func (s *sseWriter) Fail(err error) error {
	if werr := s.writeFrame(errorFrame(err)); werr != nil {
		return werr
	}
	return s.sentinel()
}

func (s *sseWriter) writeFrame(frame streamFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

func (s *sseWriter) sentinel() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}
