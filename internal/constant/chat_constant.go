package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"

	// DefaultSystemInstruction is prepended to every prompt unless SYSTEM_PROMPT overrides it.
	DefaultSystemInstruction = "You are a helpful AI record keeper. Use the provided context from documents to answer questions accurately. If the context doesn't contain relevant information, say so and do not make up answers."
)

// Prompt section markers
const (
	PromptSystemPrefix       = "System: "
	PromptHistoryHeader      = "\nRecent conversation:\n"
	PromptContextHeader      = "Context from documents:\n"
	PromptQuestionPrefix     = "User question: "
	PromptAssistantCue       = "Assistant response:"
	RetrievalSourceLabelForm = "[Source %d: %s]\n%s"
)
