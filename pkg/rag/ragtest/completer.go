// Package ragtest provides scripted collaborators for pipeline tests.
package ragtest

import (
	"context"
	"strings"
	"sync"

	"rag-chat-be/pkg/llm"
)

// Completer answers Generate calls with a fixed reply or error and records the prompts it saw.
type Completer struct {
	Reply string
	Err   error
	// Route lets one fake serve several stages by matching a substring of the prompt.
	Route map[string]string

	mu      sync.Mutex
	Prompts []string
	Options []llm.Options
}

func (c *Completer) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	c.mu.Lock()
	c.Prompts = append(c.Prompts, prompt)
	c.Options = append(c.Options, llm.Apply(llm.Options{}, opts...))
	c.mu.Unlock()

	if c.Err != nil {
		return "", c.Err
	}
	for needle, reply := range c.Route {
		if strings.Contains(prompt, needle) {
			return reply, nil
		}
	}
	return c.Reply, nil
}

func (c *Completer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Prompts)
}
