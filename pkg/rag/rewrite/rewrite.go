// Package rewrite turns a context-dependent user question into a standalone one.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/outcome"
)

const (
	DefaultHistoryTurns = 3
	maxTokens           = 200

	instruction = "Given a chat history and the latest user question which might reference context in the chat history, " +
		"formulate a standalone question which can be understood without the chat history. " +
		"Do NOT answer the question, just reformulate it if needed using relevant keywords from the chat history and otherwise return it as is."

	PrimingSuffix = "Sure, the rephrased user prompt and only the prompt with no additional comments is: "
)

var ErrEmptyRewrite = errors.New("rewriter returned empty text")

type Rewriter struct {
	completer    rag.Completer
	historyTurns int
}

func NewRewriter(completer rag.Completer, historyTurns int) *Rewriter {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &Rewriter{completer: completer, historyTurns: historyTurns}
}

// Rewrite never fails; a degraded result carries the quote-stripped input.
func (r *Rewriter) Rewrite(ctx context.Context, message string, history []rag.HistoryTurn) outcome.Result[string] {
	plain := stripQuotes(message)
	if len(history) == 0 {
		return outcome.Ok(plain)
	}

	prompt := BuildPrompt(message, rag.LastTurns(history, r.historyTurns))
	out, err := r.completer.Generate(ctx, prompt, llm.WithMaxTokens(maxTokens))
	if err != nil {
		return outcome.Fallback(plain, fmt.Errorf("rewrite: %w", err))
	}

	rewritten := strings.TrimSpace(stripQuotes(out))
	if rewritten == "" {
		return outcome.Fallback(plain, ErrEmptyRewrite)
	}
	return outcome.Ok(rewritten)
}

// BuildPrompt lays out instruction, trailing history and the question, ending with the priming suffix.
func BuildPrompt(message string, history []rag.HistoryTurn) string {
	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString("\n\nChat history:\n")
	for _, h := range history {
		sb.WriteString("User: ")
		sb.WriteString(h.User)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(h.Chatbot)
		sb.WriteString("\n")
	}
	sb.WriteString("\nLatest user question: ")
	sb.WriteString(message)
	sb.WriteString("\n\n")
	sb.WriteString(PrimingSuffix)
	return sb.String()
}

func stripQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}
