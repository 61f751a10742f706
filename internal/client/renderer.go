package client

import (
	"fmt"
	"io"
	"strings"
	"time"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/dto"

	"github.com/fatih/color"
)

// Renderer prints server frames for a human.
type Renderer struct {
	out  io.Writer
	name string

	ok     *color.Color
	warn   *color.Color
	fail   *color.Color
	info   *color.Color
	speech *color.Color
}

func NewRenderer(out io.Writer, name string) *Renderer {
	if name == "" {
		name = "You"
	}
	return &Renderer{
		out:    out,
		name:   name,
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed),
		info:   color.New(color.FgCyan),
		speech: color.New(color.Bold),
	}
}

func (r *Renderer) Frame(msg dto.OutboundMessage) {
	switch msg.Type {
	case constant.MessageTypeAuthSuccess:
		r.ok.Fprintf(r.out, "✓ %s\n", msg.Message)
	case constant.MessageTypeAuthFailed:
		r.fail.Fprintf(r.out, "✗ %s\n", msg.Message)
	case constant.MessageTypeDocumentStatus:
		r.documentStatus(msg.Data)
	case constant.MessageTypeRagResults:
		r.ragResults(msg.Data)
	case constant.MessageTypeLLMStart:
		r.speech.Fprint(r.out, "\nAssistant: ")
	case constant.MessageTypeLLMChunk:
		if text, ok := msg.Data.(string); ok {
			fmt.Fprint(r.out, text)
		}
	case constant.MessageTypeLLMEnd:
		fmt.Fprintln(r.out)
	case constant.MessageTypeError:
		r.fail.Fprintf(r.out, "Error: %s\n", msg.Message)
	case constant.MessageTypeDisconnectAck:
		r.info.Fprintln(r.out, msg.Message)
	default:
		r.warn.Fprintf(r.out, "Unknown frame: %s\n", msg.Type)
	}
}

func (r *Renderer) documentStatus(data interface{}) {
	fields, _ := data.(map[string]interface{})
	status, _ := fields["status"].(string)
	message, _ := fields["message"].(string)

	switch status {
	case constant.DocumentStatusSuccess:
		r.ok.Fprintf(r.out, "📄 %s\n", message)
	case constant.DocumentStatusDuplicate:
		r.warn.Fprintf(r.out, "📄 %s\n", message)
	default:
		r.fail.Fprintf(r.out, "📄 %s\n", message)
	}
}

func (r *Renderer) ragResults(data interface{}) {
	fields, _ := data.(map[string]interface{})
	n, _ := fields["num_results"].(float64)
	raw, _ := fields["sources"].([]interface{})

	sources := make([]string, 0, len(raw))
	for _, s := range raw {
		if name, ok := s.(string); ok {
			sources = append(sources, name)
		}
	}
	r.info.Fprintf(r.out, "🔍 Found %d relevant chunks (%s)\n", int(n), strings.Join(sources, ", "))
}

func (r *Renderer) Stats(stats dto.StatsResponse) {
	llm := r.fail.Sprint("unavailable")
	if stats.LLMAvailable {
		llm = r.ok.Sprint("available")
	}
	r.info.Fprintln(r.out, "Server statistics")
	fmt.Fprintf(r.out, "  Chunks:           %d\n", stats.TotalChunks)
	fmt.Fprintf(r.out, "  Documents:        %d\n", stats.UniqueDocuments)
	fmt.Fprintf(r.out, "  LLM:              %s (%s)\n", stats.LLMModel, llm)
	fmt.Fprintf(r.out, "  Active sessions:  %d\n", stats.ActiveSessions)
	fmt.Fprintf(r.out, "  Chat messages:    %d\n", stats.ChatMessages)
}

func (r *Renderer) Notice(format string, args ...interface{}) {
	r.warn.Fprintf(r.out, format+"\n", args...)
}

func (r *Renderer) Prompt() {
	r.info.Fprintf(r.out, "\n[%s] %s> ", time.Now().Format("15:04:05"), r.name)
}
