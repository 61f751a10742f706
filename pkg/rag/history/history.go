package history

import (
	"strings"
	"sync"
	"time"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/entity"
)

// ChatHistory is a bounded FIFO log of one session's exchanges.
type ChatHistory struct {
	mu       sync.RWMutex
	max      int
	messages []entity.ChatMessage
	now      func() time.Time
}

func New(max int) *ChatHistory {
	if max <= 0 {
		max = 1
	}
	return &ChatHistory{
		max:      max,
		messages: make([]entity.ChatMessage, 0, max),
		now:      time.Now,
	}
}

// Append records a message and evicts the oldest entries past the cap.
func (h *ChatHistory) Append(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, entity.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: h.now(),
	})
	if overflow := len(h.messages) - h.max; overflow > 0 {
		copy(h.messages, h.messages[overflow:])
		h.messages = h.messages[:h.max]
	}
}

func (h *ChatHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Messages returns a copy in chronological order.
func (h *ChatHistory) Messages() []entity.ChatMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]entity.ChatMessage, len(h.messages))
	copy(out, h.messages)
	return out
}

// Recent returns the last n messages in chronological order.
func (h *ChatHistory) Recent(n int) []entity.ChatMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := len(h.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]entity.ChatMessage, len(h.messages)-start)
	copy(out, h.messages[start:])
	return out
}

// Format renders the last n messages as a prompt block, or "" when there are none.
func (h *ChatHistory) Format(n int) string {
	recent := h.Recent(n)
	if len(recent) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(constant.PromptHistoryHeader)
	for _, msg := range recent {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
