package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// Event represents one decoded payload from an SSE `data:` line. The
// schema is free-form on the wire; unknown fields are ignored.
type Event struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Terminal reports whether the event is an in-band end-of-stream signal.
//
// An event with Type "complete" carries the full assistant answer and is
// NOT terminal; only "finish", the "stream_end" sentinel, and the "stop"
// finish reason end the stream. Do not conflate the two.
func (e Event) Terminal() bool {
	return e.Type == "finish" || e.Message == "stream_end" || e.FinishReason == "stop"
}

// Handler receives the outcome of a stream read loop.
type Handler interface {
	// OnMessage is called once per decoded event, in arrival order.
	OnMessage(Event)
	// OnComplete is called exactly once when the stream ends normally,
	// either at end of body or on a terminal event.
	OnComplete()
	// OnError is called at most once, for transport-level failures only.
	OnError(error)
}

// Callbacks adapts plain functions to Handler. Nil fields are skipped.
type Callbacks struct {
	Message  func(Event)
	Complete func()
	Error    func(error)
}

func (c Callbacks) OnMessage(e Event) {
	if c.Message != nil {
		c.Message(e)
	}
}

func (c Callbacks) OnComplete() {
	if c.Complete != nil {
		c.Complete()
	}
}

func (c Callbacks) OnError(err error) {
	if c.Error != nil {
		c.Error(err)
	}
}

// Reader converts a chunked SSE byte stream into Handler calls.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a Reader. A nil logger falls back to slog.Default.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger.With("component", "stream")}
}

// Process reads body until a terminal condition and dispatches to handler.
//
// Termination: natural end of body or an Event.Terminal event invokes
// OnComplete; a transport error invokes OnError once; cancellation of ctx
// stops the loop silently, invoking neither. A terminal event stops the
// loop immediately without draining remaining bytes. Lines that are not
// `data:` frames are protocol noise and are ignored; `data:` lines that
// fail JSON decode are logged and skipped.
func (r *Reader) Process(ctx context.Context, body io.Reader, handler Handler) {
	reader := bufio.NewReaderSize(body, 4096)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanLines)

	done := ctx.Done()

	for scanner.Scan() {
		select {
		case <-done:
			return
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			r.logger.Debug("skipping malformed stream line", "error", err)
			continue
		}

		if event.Terminal() {
			handler.OnComplete()
			return
		}
		handler.OnMessage(event)
	}

	if ctx.Err() != nil {
		// Cancellation is the caller navigating away, not a failure.
		return
	}
	if err := scanner.Err(); err != nil {
		handler.OnError(err)
		return
	}
	handler.OnComplete()
}
