package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutpulse/pulse/internal/stream"
)

type recorder struct {
	events    []stream.Event
	completes int
	errs      []error
}

func (r *recorder) handler() stream.Callbacks {
	return stream.Callbacks{
		Message:  func(e stream.Event) { r.events = append(r.events, e) },
		Complete: func() { r.completes++ },
		Error:    func(err error) { r.errs = append(r.errs, err) },
	}
}

func TestStreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/stream", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "pulse-1", req.Model)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"type\":\"delta\",\"message\":\"partial\"}\n"))
		w.Write([]byte("data: {\"type\":\"complete\",\"message\":\"full answer\"}\n"))
		w.Write([]byte("data: {\"type\":\"finish\"}\n"))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", nil)
	rec := &recorder{}
	err := c.StreamChat(context.Background(), ChatRequest{
		Model:    "pulse-1",
		Messages: []Message{{Role: "user", Content: "hello"}},
	}, rec.handler())
	require.NoError(t, err)

	require.Len(t, rec.events, 2)
	assert.Equal(t, "partial", rec.events[0].Message)
	assert.Equal(t, "complete", rec.events[1].Type)
	assert.Equal(t, 1, rec.completes)
	assert.Empty(t, rec.errs)
}

func TestStreamChatNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid api key"})
	}))
	defer srv.Close()

	c := New(srv.URL, "bad-key", nil)
	rec := &recorder{}
	err := c.StreamChat(context.Background(), ChatRequest{Model: "pulse-1"}, rec.handler())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Empty(t, rec.events)
	assert.Zero(t, rec.completes)
}

func TestStreamChatCancellationIsSilent(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"type\":\"delta\",\"message\":\"a\"}\n"))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := New(srv.URL, "test-key", nil)

	rec := &recorder{}
	err := c.StreamChat(ctx, ChatRequest{Model: "pulse-1"}, stream.Callbacks{
		Message: func(e stream.Event) {
			rec.events = append(rec.events, e)
			cancel()
		},
		Complete: func() { rec.completes++ },
		Error:    func(err error) { rec.errs = append(rec.errs, err) },
	})
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	assert.Zero(t, rec.completes)
	assert.Empty(t, rec.errs)
}

func TestFetchDigest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/digest/latest", r.URL.Path)
		w.Write([]byte("# Scout Pulse Portfolio Digest\n\nArticle 1 - T\n"))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", nil)
	raw, err := c.FetchDigest(context.Background())
	require.NoError(t, err)
	assert.Contains(t, raw, "Scout Pulse Portfolio Digest")
}

func TestGenerateDigest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/digest/generate", r.URL.Path)
		w.Write([]byte("fresh digest"))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", nil)
	raw, err := c.GenerateDigest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh digest", raw)
}

func TestFetchDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/documents/doc-42", r.URL.Path)
		json.NewEncoder(w).Encode(Document{ID: "doc-42", Name: "Q3 notes", Content: "# Heading\nbody"})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", nil)
	doc, err := c.FetchDocument(context.Background(), "doc-42")
	require.NoError(t, err)
	assert.Equal(t, "Q3 notes", doc.Name)
	assert.Contains(t, doc.Content, "# Heading")
}

func TestDefine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/glossary/alpha":
			json.NewEncoder(w).Encode(Definition{Term: "alpha", Definition: "excess return", Related: []string{"beta"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", nil)

	def, err := c.Define(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "excess return", def.Definition)

	_, err = c.Define(context.Background(), "nonesuch")
	assert.ErrorIs(t, err, ErrTermNotFound)
}
