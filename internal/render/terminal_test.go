package render

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutpulse/pulse/internal/digest"
	"github.com/scoutpulse/pulse/internal/outline"
	"github.com/scoutpulse/pulse/internal/stream"
)

func TestStreamRendererPlainText(t *testing.T) {
	var out bytes.Buffer
	r := NewStreamRenderer(&out, true)

	r.OnMessage(stream.Event{Type: "delta", Message: "First paragraph.\n\n"})
	r.OnMessage(stream.Event{Type: "delta", Message: "Second"})
	r.OnMessage(stream.Event{Type: "delta", Message: " paragraph."})
	r.OnComplete()

	assert.Equal(t, "First paragraph.\n\nSecond paragraph.\n", out.String())
	assert.NoError(t, r.Err())
}

func TestStreamRendererCompleteEventSuffix(t *testing.T) {
	var out bytes.Buffer
	r := NewStreamRenderer(&out, true)

	r.OnMessage(stream.Event{Type: "delta", Message: "Hello"})
	r.OnMessage(stream.Event{Type: "complete", Message: "Hello world"})
	r.OnComplete()

	assert.Equal(t, "Hello world\n", out.String())
}

func TestStreamRendererCompleteEventAfterFlush(t *testing.T) {
	var out bytes.Buffer
	r := NewStreamRenderer(&out, true)

	// The first paragraph is flushed before the complete event arrives;
	// its text must not be printed twice.
	r.OnMessage(stream.Event{Type: "delta", Message: "One.\n\nTwo"})
	r.OnMessage(stream.Event{Type: "complete", Message: "One.\n\nTwo more."})
	r.OnComplete()

	assert.Equal(t, "One.\n\nTwo more.\n", out.String())
}

func TestStreamRendererCompleteOnlyStream(t *testing.T) {
	var out bytes.Buffer
	r := NewStreamRenderer(&out, true)

	r.OnMessage(stream.Event{Type: "complete", Message: "The whole answer."})
	r.OnComplete()

	assert.Equal(t, "The whole answer.\n", out.String())
}

func TestStreamRendererDivergentCompleteIgnored(t *testing.T) {
	var out bytes.Buffer
	r := NewStreamRenderer(&out, true)

	r.OnMessage(stream.Event{Type: "delta", Message: "streamed text"})
	r.OnMessage(stream.Event{Type: "complete", Message: "unrelated rewrite"})
	r.OnComplete()

	assert.Equal(t, "streamed text\n", out.String())
}

func TestStreamRendererOnError(t *testing.T) {
	var out bytes.Buffer
	r := NewStreamRenderer(&out, true)

	wantErr := errors.New("connection reset")
	r.OnError(wantErr)

	assert.Contains(t, out.String(), "Sorry")
	assert.ErrorIs(t, r.Err(), wantErr)
}

func TestDigestViewPlain(t *testing.T) {
	d := digest.Digest{
		Title:     "Portfolio Digest",
		CreatedAt: time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC),
		Articles: []digest.Article{
			{
				Title:    "Acme Corp Earnings",
				Contents: "<p>Ahead of plan.</p><ul><li><strong>Revenue</strong>: up 10%</li><li>Margins &amp; mix stable</li></ul>",
				Citations: []digest.Citation{
					{Title: "Reuters", URL: "https://reuters.com/x"},
				},
			},
		},
	}

	got := NewDigestView(true).Render(d)

	assert.Contains(t, got, "Portfolio Digest")
	assert.Contains(t, got, "1. Acme Corp Earnings")
	assert.Contains(t, got, "Ahead of plan.")
	assert.Contains(t, got, "  • Revenue: up 10%")
	assert.Contains(t, got, "  • Margins & mix stable")
	assert.Contains(t, got, "Reuters (https://reuters.com/x)")
}

func TestOutlineViewPlain(t *testing.T) {
	got := OutlineView([]outline.Entry{
		{Level: 1, Title: "Report", Line: 1},
		{Level: 2, Title: "Findings", Line: 3},
	}, true)

	require.Contains(t, got, "Report  L1")
	assert.Contains(t, got, "  Findings  L3")
}
