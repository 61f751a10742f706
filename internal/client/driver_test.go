package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/dto"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type arrival struct {
	msg dto.InboundMessage
	at  time.Time
}

// fakeServer answers the protocol with canned frames and records what it got.
type fakeServer struct {
	srv         *httptest.Server
	rejectAuth  bool
	answerDelay time.Duration

	mu       sync.Mutex
	received []arrival
	answered []time.Time
}

func newFakeServer(t *testing.T, configure func(*fakeServer)) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	if configure != nil {
		configure(fs)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", fs.serveWs)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dto.StatsResponse{TotalChunks: 7, UniqueDocuments: 2, LLMModel: "llama2", LLMAvailable: true})
	})
	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http") + "/ws"
}

func (fs *fakeServer) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Timestamp frames as they arrive, independent of how long replies take
	inbound := make(chan dto.InboundMessage, 16)
	go func() {
		defer close(inbound)
		for {
			var msg dto.InboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			fs.mu.Lock()
			fs.received = append(fs.received, arrival{msg: msg, at: time.Now()})
			fs.mu.Unlock()
			inbound <- msg
		}
	}()

	for msg := range inbound {
		switch msg.Type {
		case constant.MessageTypeAuth:
			if fs.rejectAuth {
				_ = conn.WriteJSON(dto.NewOutbound(constant.MessageTypeAuthFailed, constant.MessageAuthFailed))
				continue
			}
			_ = conn.WriteJSON(dto.NewOutbound(constant.MessageTypeAuthSuccess, constant.MessageAuthSuccess))
		case constant.MessageTypeQuery:
			for _, doc := range msg.Documents {
				_ = conn.WriteJSON(dto.NewOutboundData(constant.MessageTypeDocumentStatus, dto.DocumentStatusData{
					Status:  constant.DocumentStatusSuccess,
					Message: "Added '" + doc.Filename + "' (1 chunks)",
					Chunks:  1,
				}))
			}
			if msg.Query == "" {
				continue
			}
			_ = conn.WriteJSON(dto.NewOutbound(constant.MessageTypeLLMStart, ""))
			time.Sleep(fs.answerDelay)
			_ = conn.WriteJSON(dto.NewOutboundData(constant.MessageTypeLLMChunk, "echo: "+msg.Query))
			fs.mu.Lock()
			fs.answered = append(fs.answered, time.Now())
			fs.mu.Unlock()
			_ = conn.WriteJSON(dto.NewOutbound(constant.MessageTypeLLMEnd, ""))
		case constant.MessageTypeDisconnect:
			_ = conn.WriteJSON(dto.NewOutbound(constant.MessageTypeDisconnectAck, constant.MessageGoodbye))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (fs *fakeServer) arrivals() []arrival {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]arrival(nil), fs.received...)
}

func dialFake(t *testing.T, fs *fakeServer, out *bytes.Buffer) *Driver {
	t.Helper()
	d, err := Dial(context.Background(), Options{
		ServerURL:         fs.url(),
		Password:          "secret",
		AllowedExtensions: []string{".txt", ".pdf"},
		MaxFileSizeBytes:  1024,
	}, NewRenderer(out, "tester"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestRunWaitsForAnswerBeforeNextInput(t *testing.T) {
	fs := newFakeServer(t, func(fs *fakeServer) { fs.answerDelay = 150 * time.Millisecond })
	var out bytes.Buffer
	d := dialFake(t, fs, &out)

	require.NoError(t, d.Authenticate(context.Background()))
	require.NoError(t, d.Run(context.Background(), strings.NewReader("first question\nsecond question\nquit\n")))

	got := fs.arrivals()
	require.Len(t, got, 4)
	assert.Equal(t, constant.MessageTypeAuth, got[0].msg.Type)
	assert.Equal(t, "secret", got[0].msg.Password)
	assert.Equal(t, "first question", got[1].msg.Query)
	assert.Equal(t, "second question", got[2].msg.Query)
	assert.Equal(t, constant.MessageTypeDisconnect, got[3].msg.Type)

	fs.mu.Lock()
	firstAnswered := fs.answered[0]
	fs.mu.Unlock()
	assert.True(t, got[2].at.After(firstAnswered), "second query was sent while the first was still streaming")

	assert.Contains(t, out.String(), "echo: first question")
	assert.Contains(t, out.String(), "echo: second question")
	assert.Contains(t, out.String(), constant.MessageGoodbye)
}

func TestUploadSendsDocumentWithoutQuery(t *testing.T) {
	fs := newFakeServer(t, nil)
	var out bytes.Buffer
	d := dialFake(t, fs, &out)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("meeting notes"), 0o600))

	require.NoError(t, d.Authenticate(context.Background()))
	require.NoError(t, d.Run(context.Background(), strings.NewReader("/upload "+path+"\nexit\n")))

	got := fs.arrivals()
	require.Len(t, got, 3)
	upload := got[1].msg
	assert.Empty(t, upload.Query)
	require.Len(t, upload.Documents, 1)
	assert.Equal(t, "notes.txt", upload.Documents[0].Filename)

	content, err := base64.StdEncoding.DecodeString(upload.Documents[0].Content)
	require.NoError(t, err)
	assert.Equal(t, "meeting notes", string(content))
	assert.Contains(t, out.String(), "Added 'notes.txt' (1 chunks)")
}

func TestAttachSendsDocumentAndQuestion(t *testing.T) {
	fs := newFakeServer(t, nil)
	var out bytes.Buffer
	d := dialFake(t, fs, &out)

	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	require.NoError(t, d.Authenticate(context.Background()))
	require.NoError(t, d.Run(context.Background(), strings.NewReader("/attach "+path+" what is in it?\nq\n")))

	got := fs.arrivals()
	require.Len(t, got, 3)
	assert.Equal(t, "what is in it?", got[1].msg.Query)
	require.Len(t, got[1].msg.Documents, 1)
	assert.Contains(t, out.String(), "echo: what is in it?")
}

func TestFilesAreCheckedBeforeSending(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "tool.exe")
	require.NoError(t, os.WriteFile(exe, []byte("MZ"), 0o600))
	big := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(big, bytes.Repeat([]byte("a"), 2048), 0o600))

	tests := []struct {
		name    string
		command string
		wantOut string
	}{
		{"disallowed extension", "/upload " + exe, `unsupported file type ".exe"`},
		{"too large", "/upload " + big, "max: 0MB"},
		{"missing file", "/upload " + filepath.Join(dir, "nope.txt"), "file rejected"},
		{"attach without question", "/attach " + big, "Usage: /attach"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeServer(t, nil)
			var out bytes.Buffer
			d := dialFake(t, fs, &out)

			require.NoError(t, d.Authenticate(context.Background()))
			require.NoError(t, d.Run(context.Background(), strings.NewReader(tt.command+"\nquit\n")))

			got := fs.arrivals()
			require.Len(t, got, 2, "nothing but auth and disconnect reaches the server")
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestAuthenticateRejected(t *testing.T) {
	fs := newFakeServer(t, func(fs *fakeServer) { fs.rejectAuth = true })
	var out bytes.Buffer
	d := dialFake(t, fs, &out)

	assert.ErrorIs(t, d.Authenticate(context.Background()), ErrAuthFailed)
	assert.Contains(t, out.String(), constant.MessageAuthFailed)
}

func TestStatsCommand(t *testing.T) {
	fs := newFakeServer(t, nil)
	var out bytes.Buffer
	d := dialFake(t, fs, &out)

	require.NoError(t, d.Authenticate(context.Background()))
	require.NoError(t, d.Run(context.Background(), strings.NewReader("/stats\nquit\n")))

	assert.Contains(t, out.String(), "Chunks:           7")
	assert.Contains(t, out.String(), "llama2")
}

func TestStatsURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "ws://localhost:8765/ws", want: "http://localhost:8765/stats"},
		{in: "wss://rag.example.com/ws?x=1", want: "https://rag.example.com/stats"},
		{in: "http://localhost:8765/ws", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := StatsURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryWaitCompletion(t *testing.T) {
	frame := func(typ string) dto.OutboundMessage { return dto.OutboundMessage{Type: typ} }

	tests := []struct {
		name   string
		wait   queryWait
		frames []string
		doneAt int
	}{
		{"plain query", queryWait{hasQuery: true}, []string{"llm_start", "llm_chunk", "llm_end"}, 2},
		{"generation error then end", queryWait{hasQuery: true}, []string{"llm_start", "error", "llm_end"}, 2},
		{"upload only", queryWait{docs: 2}, []string{"document_status", "error"}, 1},
		{"rejected attachment with query", queryWait{hasQuery: true, docs: 1}, []string{"error", "rag_results", "llm_start", "llm_end"}, 3},
		{"unauthenticated", queryWait{hasQuery: true}, []string{"error"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.wait
			for i, typ := range tt.frames {
				done := w.observe(frame(typ))
				assert.Equal(t, i == tt.doneAt, done, "frame %d (%s)", i, typ)
				if done {
					return
				}
			}
		})
	}
}
