// Package app wires configuration, the API client, the history store, and
// the renderers into the commands the CLI exposes.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peterh/liner"

	"github.com/scoutpulse/pulse/internal/args"
	"github.com/scoutpulse/pulse/internal/client"
	"github.com/scoutpulse/pulse/internal/config"
	"github.com/scoutpulse/pulse/internal/digest"
	"github.com/scoutpulse/pulse/internal/history"
	"github.com/scoutpulse/pulse/internal/outline"
	"github.com/scoutpulse/pulse/internal/render"
	"github.com/scoutpulse/pulse/internal/session"
)

// ErrDigestTooShort is returned when the service hands back less content
// than the configured minimum. The parser itself never rejects input; the
// adequacy check lives here.
var ErrDigestTooShort = errors.New("digest content too short")

// App holds the wired dependencies for one command invocation.
type App struct {
	cfg    config.Config
	args   args.Arguments
	logger *slog.Logger
	client *client.Client
	store  *history.Store
	out    io.Writer
}

// New wires an App. The history store is optional: when it cannot be
// opened the commands run without persistence.
func New(cfg config.Config, arguments args.Arguments, logger *slog.Logger) *App {
	app := &App{
		cfg:    cfg,
		args:   arguments,
		logger: logger.With("component", "app"),
		client: client.New(cfg.BaseURL, cfg.APIKey, logger),
		out:    os.Stdout,
	}

	path, err := history.DefaultPath()
	if err == nil {
		app.store, err = history.Open(path)
	}
	if err != nil {
		app.logger.Warn("history store unavailable", "error", err)
	}
	return app
}

// Close releases the history store.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close history store", "error", err)
		}
	}
}

// Run dispatches the parsed command.
func (a *App) Run(ctx context.Context) error {
	switch a.args.Command {
	case args.CommandChat:
		return a.runChat(ctx)
	case args.CommandDigest:
		return a.runDigest(ctx)
	case args.CommandView:
		return a.runView(ctx)
	case args.CommandDefine:
		return a.runDefine(ctx)
	default:
		return a.runAsk(ctx)
	}
}

// runAsk streams one answer for the prompt and exits.
func (a *App) runAsk(ctx context.Context) error {
	sess := session.New(a.args.Model)
	defer sess.Release()

	sess.Append(session.RoleUser, a.args.Prompt)
	if err := a.streamTurn(ctx, sess); err != nil {
		return err
	}
	a.saveTranscript(ctx, sess, sess.Messages())
	return nil
}

// runChat runs the interactive REPL. Ctrl-C during a streaming answer
// cancels only that answer; at the prompt it ends the session.
func (a *App) runChat(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	a.loadChatHistory(line)
	defer a.saveChatHistory(line)

	sess := session.New(a.args.Model)
	defer sess.Release()

	fmt.Fprintln(a.out, "Chatting with "+sess.Model()+" (exit or Ctrl-C to leave)")
	for {
		input, err := line.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}
		line.AppendHistory(input)

		userMsg := sess.Append(session.RoleUser, input)
		if err := a.streamTurn(ctx, sess); err != nil {
			return err
		}

		// An interrupted stream produces no assistant message for the turn.
		turn := []session.Message{userMsg}
		msgs := sess.Messages()
		if last := msgs[len(msgs)-1]; last.ID != userMsg.ID {
			turn = append(turn, last)
		}
		a.saveTranscript(ctx, sess, turn)
	}
}

// streamTurn streams one assistant answer for the session's current
// history and appends it. An interrupt while streaming cancels the loop
// cooperatively; the turn then ends without an answer, not with an error.
func (a *App) streamTurn(ctx context.Context, sess *session.Session) error {
	sctx := sess.Activate(ctx)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		select {
		case <-interrupt:
			sess.Release()
		case <-sctx.Done():
		}
	}()
	defer signal.Stop(interrupt)
	defer sess.Release()

	renderer := render.NewStreamRenderer(a.out, a.args.UsePlainText)
	if err := a.client.StreamChat(sctx, chatRequest(sess), renderer); err != nil {
		return err
	}
	if err := renderer.Err(); err != nil {
		return fmt.Errorf("stream failed: %w", err)
	}

	if answer := renderer.Text(); answer != "" {
		sess.Append(session.RoleAssistant, answer)
	}
	return nil
}

func chatRequest(sess *session.Session) client.ChatRequest {
	msgs := sess.Messages()
	req := client.ChatRequest{
		Model:    sess.Model(),
		Messages: make([]client.Message, 0, len(msgs)),
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, client.Message{Role: m.Role, Content: m.Content})
	}
	return req
}

// runDigest fetches (or generates) the digest, validates its length,
// parses it, and displays or persists the result.
func (a *App) runDigest(ctx context.Context) error {
	if a.args.HistoryLimit > 0 {
		return a.listDigests(ctx)
	}

	var raw string
	var err error
	if a.args.RefreshDigest {
		raw, err = a.client.GenerateDigest(ctx)
	} else {
		raw, err = a.client.FetchDigest(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to retrieve digest: %w", err)
	}

	if err := a.validateDigest(raw); err != nil {
		return err
	}

	if a.args.SaveFile != "" {
		if err := writeFileAtomic(a.args.SaveFile, []byte(raw)); err != nil {
			return fmt.Errorf("failed to save digest: %w", err)
		}
	}

	d := digest.Parse(raw)
	d.CreatedAt = time.Now().UTC()

	if a.store != nil {
		rec := history.DigestRecord{
			ID:           uuid.NewString(),
			Title:        d.Title,
			ArticleCount: len(d.Articles),
			Raw:          raw,
			CreatedAt:    d.CreatedAt,
		}
		if err := a.store.SaveDigest(ctx, rec); err != nil {
			a.logger.Warn("failed to record digest", "error", err)
		}
	}

	if a.args.DigestJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("failed to encode digest: %w", err)
		}
		return nil
	}

	fmt.Fprint(a.out, render.NewDigestView(a.args.UsePlainText).Render(d))
	return nil
}

// validateDigest applies the caller-side adequacy check the parser
// deliberately does not perform.
func (a *App) validateDigest(raw string) error {
	if len(strings.TrimSpace(raw)) < a.cfg.MinDigestLength {
		return fmt.Errorf("%w: got %d bytes, want at least %d", ErrDigestTooShort, len(raw), a.cfg.MinDigestLength)
	}
	return nil
}

func (a *App) listDigests(ctx context.Context) error {
	if a.store == nil {
		return errors.New("history store unavailable")
	}

	records, err := a.store.ListDigests(ctx, a.args.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to list digests: %w", err)
	}
	for _, rec := range records {
		fmt.Fprintf(a.out, "%s  %-40s  %d articles\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.Title, rec.ArticleCount)
	}
	return nil
}

// runView fetches one document and shows its outline and body.
func (a *App) runView(ctx context.Context) error {
	doc, err := a.client.FetchDocument(ctx, a.args.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to fetch document: %w", err)
	}

	entries := outline.Extract(doc.Content)
	if a.args.OutlineOnly {
		fmt.Fprint(a.out, render.OutlineView(entries, a.args.UsePlainText))
		return nil
	}

	if len(entries) > 0 {
		fmt.Fprint(a.out, render.OutlineView(entries, a.args.UsePlainText))
		fmt.Fprintln(a.out)
	}
	return render.Markdown(a.out, doc.Content, a.args.UsePlainText)
}

// runDefine looks up a glossary term.
func (a *App) runDefine(ctx context.Context) error {
	def, err := a.client.Define(ctx, a.args.Term)
	if err != nil {
		return err
	}

	if err := render.Markdown(a.out, "**"+def.Term+"**: "+def.Definition, a.args.UsePlainText); err != nil {
		return err
	}
	if len(def.Related) > 0 {
		fmt.Fprintln(a.out, "See also: "+strings.Join(def.Related, ", "))
	}
	return nil
}

func (a *App) saveTranscript(ctx context.Context, sess *session.Session, msgs []session.Message) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveMessages(ctx, sess.ID(), msgs); err != nil {
		a.logger.Warn("failed to record transcript", "error", err)
	}
}

func (a *App) chatHistoryPath() (string, error) {
	dbPath, err := history.DefaultPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(dbPath), "chat_history"), nil
}

func (a *App) loadChatHistory(line *liner.State) {
	path, err := a.chatHistoryPath()
	if err != nil {
		return
	}
	if f, err := os.Open(path); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
}

func (a *App) saveChatHistory(line *liner.State) {
	path, err := a.chatHistoryPath()
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

// writeFileAtomic writes data via a temp file and rename so a crash never
// leaves a half-written file behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
