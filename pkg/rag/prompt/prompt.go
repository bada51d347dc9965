// Package prompt builds the augmented system prompt from the stored template and retrieved knowledge.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrTemplateUnavailable = errors.New("system prompt template unavailable")

// TemplateSource reads a stored object by key.
type TemplateSource interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

func Assemble(template, content string) string {
	return "Knowledge: " + content + "\nInstructions: " + template
}

type Assembler struct {
	source TemplateSource
	key    string
}

func NewAssembler(source TemplateSource, key string) *Assembler {
	return &Assembler{source: source, key: key}
}

// Build fetches the template for this request. There is no template-less fallback.
func (a *Assembler) Build(ctx context.Context, content string) (string, error) {
	raw, err := a.source.Read(ctx, a.key)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrTemplateUnavailable, a.key, err)
	}
	template := strings.TrimSpace(string(raw))
	if template == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrTemplateUnavailable, a.key)
	}
	return Assemble(template, content), nil
}
