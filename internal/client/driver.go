package client

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/dto"

	"github.com/gorilla/websocket"
)

var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrConnectionClosed = errors.New("connection closed by server")
	ErrRejectedFile     = errors.New("file rejected")
)

type Options struct {
	ServerURL         string // ws://host:port/ws
	Password          string
	AllowedExtensions []string
	MaxFileSizeBytes  int64
}

// Driver speaks the chat protocol for an interactive user. Only one request
// is in flight at a time: input is not read until the answer is complete.
type Driver struct {
	opts     Options
	conn     *websocket.Conn
	render   *Renderer
	http     *http.Client
	statsURL string

	// frames is closed by the reader; readErr is valid after that
	frames  chan dto.OutboundMessage
	readErr error
}

func Dial(ctx context.Context, opts Options, render *Renderer) (*Driver, error) {
	statsURL, err := StatsURL(opts.ServerURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.ServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.ServerURL, err)
	}

	d := &Driver{
		opts:     opts,
		conn:     conn,
		render:   render,
		http:     &http.Client{Timeout: 10 * time.Second},
		statsURL: statsURL,
		frames:   make(chan dto.OutboundMessage, 64),
	}
	go d.readLoop()
	return d, nil
}

// StatsURL maps the websocket endpoint to the HTTP stats endpoint on the same host.
func StatsURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("invalid server url scheme: %q", u.Scheme)
	}
	u.Path = "/stats"
	u.RawQuery = ""
	return u.String(), nil
}

func (d *Driver) readLoop() {
	defer close(d.frames)
	for {
		var msg dto.OutboundMessage
		if err := d.conn.ReadJSON(&msg); err != nil {
			d.readErr = err
			return
		}
		d.frames <- msg
	}
}

func (d *Driver) Close() error {
	return d.conn.Close()
}

// await renders frames until done reports the request complete.
func (d *Driver) await(ctx context.Context, done func(dto.OutboundMessage) bool) error {
	for {
		select {
		case msg, ok := <-d.frames:
			if !ok {
				if d.readErr != nil && !websocket.IsCloseError(d.readErr, websocket.CloseNormalClosure) {
					return fmt.Errorf("%w: %v", ErrConnectionClosed, d.readErr)
				}
				return ErrConnectionClosed
			}
			d.render.Frame(msg)
			if done(msg) {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Driver) Authenticate(ctx context.Context) error {
	if err := d.conn.WriteJSON(dto.InboundMessage{Type: constant.MessageTypeAuth, Password: d.opts.Password}); err != nil {
		return err
	}

	var accepted bool
	err := d.await(ctx, func(msg dto.OutboundMessage) bool {
		switch msg.Type {
		case constant.MessageTypeAuthSuccess:
			accepted = true
			return true
		case constant.MessageTypeAuthFailed, constant.MessageTypeError:
			return true
		}
		return false
	})
	if err != nil {
		return err
	}
	if !accepted {
		return ErrAuthFailed
	}
	return nil
}

// Ask sends a query with optional attachments and blocks until it is answered.
func (d *Driver) Ask(ctx context.Context, query string, paths ...string) error {
	docs := make([]dto.DocumentUpload, 0, len(paths))
	for _, p := range paths {
		doc, err := d.loadDocument(p)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	err := d.conn.WriteJSON(dto.InboundMessage{
		Type:      constant.MessageTypeQuery,
		Query:     query,
		Documents: docs,
	})
	if err != nil {
		return err
	}

	wait := &queryWait{hasQuery: strings.TrimSpace(query) != "", docs: len(docs)}
	return d.await(ctx, wait.observe)
}

func (d *Driver) loadDocument(path string) (dto.DocumentUpload, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(d.opts.AllowedExtensions, ext) {
		return dto.DocumentUpload{}, fmt.Errorf("%w: unsupported file type %q (allowed: %s)",
			ErrRejectedFile, ext, strings.Join(d.opts.AllowedExtensions, ", "))
	}

	info, err := os.Stat(path)
	if err != nil {
		return dto.DocumentUpload{}, fmt.Errorf("%w: %v", ErrRejectedFile, err)
	}
	if d.opts.MaxFileSizeBytes > 0 && info.Size() > d.opts.MaxFileSizeBytes {
		return dto.DocumentUpload{}, fmt.Errorf("%w: %s is %.2fMB (max: %.0fMB)", ErrRejectedFile, path,
			float64(info.Size())/(1024*1024), float64(d.opts.MaxFileSizeBytes)/(1024*1024))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return dto.DocumentUpload{}, fmt.Errorf("%w: %v", ErrRejectedFile, err)
	}
	return dto.DocumentUpload{
		Filename: filepath.Base(path),
		Content:  base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Disconnect says goodbye and waits for the acknowledgement.
func (d *Driver) Disconnect(ctx context.Context) error {
	if err := d.conn.WriteJSON(dto.InboundMessage{Type: constant.MessageTypeDisconnect}); err != nil {
		return err
	}
	err := d.await(ctx, func(msg dto.OutboundMessage) bool {
		return msg.Type == constant.MessageTypeDisconnectAck
	})
	if errors.Is(err, ErrConnectionClosed) {
		return nil
	}
	return err
}

func (d *Driver) Stats(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.statsURL, nil)
	if err != nil {
		return err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("fetch stats: status %d", resp.StatusCode)
	}

	var stats dto.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}
	d.render.Stats(stats)
	return nil
}

// Run reads commands from in until quit or EOF.
func (d *Driver) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		d.render.Prompt()
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return d.Disconnect(ctx)
		}

		line := strings.TrimSpace(scanner.Text())
		var err error
		switch {
		case line == "":
			continue
		case line == "q" || line == "quit" || line == "exit":
			return d.Disconnect(ctx)
		case line == "/stats":
			err = d.Stats(ctx)
		case strings.HasPrefix(line, "/upload "):
			err = d.Ask(ctx, "", strings.TrimSpace(strings.TrimPrefix(line, "/upload ")))
		case strings.HasPrefix(line, "/attach "):
			path, question, _ := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "/attach ")), " ")
			if strings.TrimSpace(question) == "" {
				d.render.Notice("Usage: /attach <path> <question>")
				continue
			}
			err = d.Ask(ctx, strings.TrimSpace(question), path)
		default:
			err = d.Ask(ctx, line)
		}

		switch {
		case err == nil:
		case errors.Is(err, ErrRejectedFile):
			d.render.Notice("%v", err)
		case errors.Is(err, ErrConnectionClosed), ctx.Err() != nil:
			return err
		default:
			d.render.Notice("Request failed: %v", err)
		}
	}
}

// queryWait decides when a query's frames are complete. Every attachment gets
// exactly one report, and a non-empty query always ends with llm_end.
type queryWait struct {
	hasQuery bool
	docs     int
	reported int
	started  bool
}

func (w *queryWait) observe(msg dto.OutboundMessage) bool {
	switch msg.Type {
	case constant.MessageTypeLLMStart:
		w.started = true
	case constant.MessageTypeLLMEnd:
		return true
	case constant.MessageTypeDocumentStatus:
		w.reported++
		return !w.hasQuery && w.reported >= w.docs
	case constant.MessageTypeError:
		if w.started {
			// generation failed; llm_end follows
			return false
		}
		if w.reported < w.docs {
			w.reported++
			return !w.hasQuery && w.reported >= w.docs
		}
		return true
	}
	return false
}
