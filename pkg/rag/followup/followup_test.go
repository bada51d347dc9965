package followup

import (
	"context"
	"errors"
	"testing"

	"rag-chat-be/pkg/rag/ragtest"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name         string
		completer    *ragtest.Completer
		want         []string
		wantDegraded bool
	}{
		{
			name:      "three questions",
			completer: &ragtest.Completer{Reply: " What is next? ||| How long? |||Who approves?  "},
			want:      []string{"What is next?", "How long?", "Who approves?"},
		},
		{
			name:         "two questions",
			completer:    &ragtest.Completer{Reply: "A? ||| B?"},
			want:         Fallback,
			wantDegraded: true,
		},
		{
			name:         "four questions",
			completer:    &ragtest.Completer{Reply: "A? ||| B? ||| C? ||| D?"},
			want:         Fallback,
			wantDegraded: true,
		},
		{
			name:         "empty segment",
			completer:    &ragtest.Completer{Reply: "A? |||   ||| C?"},
			want:         Fallback,
			wantDegraded: true,
		},
		{
			name:         "numbered list instead of delimiter",
			completer:    &ragtest.Completer{Reply: "1. A?\n2. B?\n3. C?"},
			want:         Fallback,
			wantDegraded: true,
		},
		{
			name:         "provider error",
			completer:    &ragtest.Completer{Err: errors.New("timeout")},
			want:         Fallback,
			wantDegraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewGenerator(tt.completer).Generate(context.Background(), "What is the deadline?", "Friday.")
			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.wantDegraded, res.Degraded)
			assert.Len(t, res.Value, 3)
			for _, q := range res.Value {
				assert.NotEmpty(t, q)
			}
		})
	}
}

func TestGenerate_FallbackIsACopy(t *testing.T) {
	res := NewGenerator(&ragtest.Completer{Err: errors.New("x")}).Generate(context.Background(), "a", "b")
	res.Value[0] = "mutated"
	assert.NotEqual(t, "mutated", Fallback[0])
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("What is the deadline?", "Friday.")
	assert.Contains(t, p, `Previous user message: "What is the deadline?"`)
	assert.Contains(t, p, `Bot response: "Friday."`)
	assert.Contains(t, p, "|||")
}
