// Package client provides thin wrappers over the hosted Scout Pulse API:
// streaming chat, digest retrieval and generation, document retrieval, and
// glossary lookup.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/scoutpulse/pulse/internal/stream"
)

// DefaultBaseURL is the hosted Scout Pulse endpoint.
const DefaultBaseURL = "https://api.scoutpulse.io"

// ErrTermNotFound is returned by Define when the glossary has no entry.
var ErrTermNotFound = errors.New("glossary term not found")

// Message is one chat turn sent to the API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload for a streaming chat call.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Document is one stored research document.
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Definition is one glossary entry.
type Definition struct {
	Term       string   `json:"term"`
	Definition string   `json:"definition"`
	Related    []string `json:"related,omitempty"`
}

// getHTTPClient returns a singleton HTTP client with a tuned transport.
var (
	httpClient     *http.Client
	httpClientOnce sync.Once
	defaultTimeout = 60 * time.Second
)

func getHTTPClient(ctx context.Context) *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:       100,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: false,
			DisableKeepAlives:  false,
			ForceAttemptHTTP2:  true,
		}
		transport.DialContext = (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext

		httpClient = &http.Client{Transport: transport}
	})

	// Honor a context deadline when one is set; otherwise fall back to
	// the default timeout.
	clientCopy := *httpClient
	if deadline, ok := ctx.Deadline(); ok {
		clientCopy.Timeout = time.Until(deadline)
	} else {
		clientCopy.Timeout = defaultTimeout
	}
	return &clientCopy
}

// Client issues requests against one Scout Pulse deployment.
type Client struct {
	baseURL string
	apiKey  string
	reader  *stream.Reader
	logger  *slog.Logger
}

// New creates a Client. An empty baseURL selects the hosted endpoint.
func New(baseURL, apiKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		reader:  stream.NewReader(logger),
		logger:  logger.With("component", "client"),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// apiError is the JSON error body the service returns on non-200 statuses.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusError turns a non-200 response into an error, preferring the
// decoded message over the raw body.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var decoded apiError
	if err := json.Unmarshal(body, &decoded); err == nil {
		if msg := firstNonEmpty(decoded.Message, decoded.Error); msg != "" {
			return fmt.Errorf("api request failed with status %d: %s", resp.StatusCode, msg)
		}
	}
	return fmt.Errorf("api request failed with status %d: %s", resp.StatusCode, string(body))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// StreamChat posts a chat request and feeds the SSE response body through
// the stream reader into handler. The returned error covers request
// construction and transport setup only; once streaming begins, every
// outcome flows through the handler.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, handler stream.Handler) error {
	req.Stream = true
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/v1/chat/stream", bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := getHTTPClient(ctx).Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	c.reader.Process(ctx, resp.Body, handler)
	return nil
}

// FetchDigest retrieves the latest generated digest as raw markdown text.
func (c *Client) FetchDigest(ctx context.Context) (string, error) {
	return c.fetchText(ctx, http.MethodGet, "/v1/digest/latest")
}

// GenerateDigest asks the service to build a fresh digest and blocks until
// the raw text comes back.
func (c *Client) GenerateDigest(ctx context.Context) (string, error) {
	return c.fetchText(ctx, http.MethodPost, "/v1/digest/generate")
}

func (c *Client) fetchText(ctx context.Context, method, path string) (string, error) {
	req, err := c.newRequest(ctx, method, path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/markdown, text/plain")

	resp, err := getHTTPClient(ctx).Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}

// FetchDocument retrieves one stored document by ID.
func (c *Client) FetchDocument(ctx context.Context, id string) (Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/documents/"+url.PathEscape(id), nil)
	if err != nil {
		return Document{}, err
	}

	resp, err := getHTTPClient(ctx).Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("request failed: %w", err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return Document{}, statusError(resp)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return doc, nil
}

// Define looks up one glossary term.
func (c *Client) Define(ctx context.Context, term string) (Definition, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/glossary/"+url.PathEscape(term), nil)
	if err != nil {
		return Definition{}, err
	}

	resp, err := getHTTPClient(ctx).Do(req)
	if err != nil {
		return Definition{}, fmt.Errorf("request failed: %w", err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return Definition{}, fmt.Errorf("%w: %s", ErrTermNotFound, term)
	}
	if resp.StatusCode != http.StatusOK {
		return Definition{}, statusError(resp)
	}

	var def Definition
	if err := json.NewDecoder(resp.Body).Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return def, nil
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Debug("failed to close response body", "error", err)
	}
}
