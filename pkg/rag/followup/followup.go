// Package followup suggests next questions after an answer.
package followup

import (
	"context"
	"fmt"
	"strings"

	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/outcome"
)

const (
	Delimiter = "|||"
	count     = 3
	maxTokens = 200
)

// Fallback is returned whenever the model output cannot be used.
var Fallback = []string{
	"Can you provide more details about this topic?",
	"What are the next steps in this process?",
	"Are there any specific requirements I should know about?",
}

type Generator struct {
	completer rag.Completer
}

func NewGenerator(completer rag.Completer) *Generator {
	return &Generator{completer: completer}
}

// Generate always yields exactly three questions.
func (g *Generator) Generate(ctx context.Context, userMessage, botResponse string) outcome.Result[[]string] {
	out, err := g.completer.Generate(ctx, BuildPrompt(userMessage, botResponse), llm.WithMaxTokens(maxTokens))
	if err != nil {
		return outcome.Fallback(fallback(), fmt.Errorf("follow-ups: %w", err))
	}

	questions, ok := Parse(out)
	if !ok {
		return outcome.Fallback(fallback(), fmt.Errorf("follow-ups: unusable reply %q", truncate(out, 80)))
	}
	return outcome.Ok(questions)
}

func BuildPrompt(userMessage, botResponse string) string {
	return fmt.Sprintf(`Generate exactly 3 follow-up questions based on this conversation. Each question must end with a question mark and be under 80 characters.

Previous user message: "%s"
Bot response: "%s"

Output the questions separated by %s (three vertical bars).
Example: What is the next step? %s How long will it take? %s What documents are needed?

Output ONLY the questions with the separators, nothing else.`, userMessage, botResponse, Delimiter, Delimiter, Delimiter)
}

// Parse accepts only exactly three non-empty segments.
func Parse(raw string) ([]string, bool) {
	parts := strings.Split(strings.TrimSpace(raw), Delimiter)
	if len(parts) != count {
		return nil, false
	}
	out := make([]string, 0, count)
	for _, p := range parts {
		q := strings.TrimSpace(p)
		if q == "" {
			return nil, false
		}
		out = append(out, q)
	}
	return out, true
}

func fallback() []string {
	return append([]string(nil), Fallback...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
