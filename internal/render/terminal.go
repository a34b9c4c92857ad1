package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/scoutpulse/pulse/internal/stream"
)

// StreamRenderer implements stream.Handler for live chat output. Content
// accumulates in a buffer and is flushed through the markdown renderer at
// paragraph boundaries, so partially streamed markdown is never rendered
// mid-construct.
type StreamRenderer struct {
	out       io.Writer
	markdown  *glamour.TermRenderer
	plainText bool
	buffer    strings.Builder
	printed   string
	err       error
}

// NewStreamRenderer creates a renderer writing to out.
func NewStreamRenderer(out io.Writer, usePlainText bool) *StreamRenderer {
	var md *glamour.TermRenderer
	if !usePlainText {
		md, _ = glamour.NewTermRenderer(
			glamour.WithWordWrap(120),
			glamour.WithAutoStyle(),
		)
	}

	return &StreamRenderer{
		out:       out,
		markdown:  md,
		plainText: usePlainText,
	}
}

// OnMessage accumulates one event's content. An event typed "complete"
// carries the authoritative full answer; if deltas already streamed, only
// the unseen suffix is appended.
func (t *StreamRenderer) OnMessage(event stream.Event) {
	content := event.Message
	if content == "" {
		return
	}

	if event.Type == "complete" {
		seen := t.printed + t.buffer.String()
		if !strings.HasPrefix(content, seen) {
			return
		}
		content = content[len(seen):]
	}
	t.buffer.WriteString(content)

	full := t.buffer.String()
	if idx := findMarkdownBreakPoint(full); idx > 0 {
		if err := t.renderContent(full[:idx]); err != nil {
			t.err = err
			return
		}
		t.printed += full[:idx]
		t.buffer.Reset()
		t.buffer.WriteString(full[idx:])
	}
}

// OnComplete flushes whatever is still buffered.
func (t *StreamRenderer) OnComplete() {
	if remaining := t.buffer.String(); remaining != "" {
		t.printed += remaining
		t.buffer.Reset()
		if err := t.renderContent(remaining); err != nil {
			t.err = err
			return
		}
	}
	fmt.Fprintln(t.out)
}

// OnError reports the stream failure as a single chat-style message.
func (t *StreamRenderer) OnError(err error) {
	t.err = err
	fmt.Fprintln(t.out, "Sorry, something went wrong while streaming the response.")
}

// Err returns the first rendering or stream error, if any.
func (t *StreamRenderer) Err() error {
	return t.err
}

// Text returns everything rendered so far. After OnComplete this is the
// full assistant answer.
func (t *StreamRenderer) Text() string {
	return t.printed + t.buffer.String()
}

func (t *StreamRenderer) renderContent(content string) error {
	if t.plainText {
		fmt.Fprint(t.out, content)
		return nil
	}

	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "#") {
		fmt.Fprintln(t.out)
	}

	mdContent, err := t.markdown.Render(content)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	fmt.Fprintln(t.out, strings.TrimSpace(mdContent))
	return nil
}

func findMarkdownBreakPoint(content string) int {
	const marker string = "\n\n"
	lastBreak := -1
	idx := strings.LastIndex(content, marker)
	if idx > lastBreak {
		lastBreak = idx + len(marker)
	}
	return lastBreak
}

// Markdown renders one complete markdown document for the terminal,
// printing the raw text in plain mode.
func Markdown(out io.Writer, content string, usePlainText bool) error {
	if usePlainText {
		_, err := fmt.Fprintln(out, content)
		return err
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithWordWrap(120),
		glamour.WithAutoStyle(),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	rendered, err := md.Render(content)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	fmt.Fprintln(out, strings.TrimSpace(rendered))
	return nil
}
