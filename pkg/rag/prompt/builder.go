package prompt

import (
	"strings"

	"virtualrag-be/internal/constant"
)

// Builder assembles the generation prompt in a fixed order: system
// instruction, recent history, retrieved context, then the question.
type Builder struct {
	systemInstruction string
}

func NewBuilder(systemInstruction string) *Builder {
	if systemInstruction == "" {
		systemInstruction = constant.DefaultSystemInstruction
	}
	return &Builder{systemInstruction: systemInstruction}
}

// Build renders the prompt. historyBlock is the output of ChatHistory.Format and
// may be empty; so may context.
func (b *Builder) Build(historyBlock, context, question string) string {
	var prompt strings.Builder

	b.writeSystem(&prompt)
	prompt.WriteString(historyBlock)
	writeContext(&prompt, context)
	writeQuestion(&prompt, question)

	return prompt.String()
}

func (b *Builder) writeSystem(prompt *strings.Builder) {
	prompt.WriteString(constant.PromptSystemPrefix)
	prompt.WriteString(b.systemInstruction)
	prompt.WriteString("\n")
}

func writeContext(prompt *strings.Builder, context string) {
	if context == "" {
		return
	}
	prompt.WriteString(constant.PromptContextHeader)
	prompt.WriteString(context)
	prompt.WriteString("\n")
}

func writeQuestion(prompt *strings.Builder, question string) {
	prompt.WriteString(constant.PromptQuestionPrefix)
	prompt.WriteString(question)
	prompt.WriteString("\n")
	prompt.WriteString(constant.PromptAssistantCue)
}
