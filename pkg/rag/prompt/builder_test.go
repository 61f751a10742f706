package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildOrder(t *testing.T) {
	b := NewBuilder("Be terse.")
	history := "\nRecent conversation:\nuser: hi\nassistant: hello\n"
	context := "[Source 1: a.txt]\nhello world"

	got := b.Build(history, context, "What is in the document?")

	want := "System: Be terse.\n" +
		"\nRecent conversation:\nuser: hi\nassistant: hello\n" +
		"Context from documents:\n[Source 1: a.txt]\nhello world\n" +
		"User question: What is in the document?\n" +
		"Assistant response:"
	assert.Equal(t, want, got)
}

func TestBuildOmitsEmptySections(t *testing.T) {
	got := NewBuilder("").Build("", "", "q")

	assert.True(t, strings.HasPrefix(got, "System: You are a helpful AI record keeper."))
	assert.NotContains(t, got, "Recent conversation")
	assert.NotContains(t, got, "Context from documents")
	assert.True(t, strings.HasSuffix(got, "User question: q\nAssistant response:"))
}
