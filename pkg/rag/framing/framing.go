// Package framing encodes the metadata trailer that follows a streamed answer on the push channel.
//
// The channel only carries text frames, so metadata travels in-band. Three encodings exist:
// the length-prefixed v1 trailer, plus the two sentinel formats older clients still parse.
package framing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"rag-chat-be/pkg/rag"
)

const (
	EOFMarker      = "!<|EOF_STREAM|>!"
	MessageIDTag   = "<!MessageId!>: "
	SourcesTag     = "<!Sources!>: "
	PromptsTag     = "<!Prompts!>: "
	ErrorTag       = "<!ERROR!>: "
	V1Header       = "<!TRAILER!>v1"
	tagMessageID   = "id"
	tagSources     = "src"
	tagPrompts     = "fup"
	segmentOpening = '|'
)

type Mode string

const (
	ModeEOF      Mode = "eof"
	ModeSentinel Mode = "sentinel"
	ModeV1       Mode = "v1"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeV1, "":
		return ModeV1, nil
	case ModeSentinel:
		return ModeSentinel, nil
	case ModeEOF:
		return ModeEOF, nil
	}
	return "", fmt.Errorf("unknown framing mode %q", s)
}

// Trailer is the metadata sent after an answer. A nil slice or empty id means "absent";
// a non-nil empty slice is sent as [].
type Trailer struct {
	MessageID string
	Sources   []rag.Source
	Prompts   []string
}

// Encode renders the trailer as the frames to push, in order.
func Encode(mode Mode, t Trailer) ([][]byte, error) {
	switch mode {
	case ModeEOF:
		return encodeEOF(t)
	case ModeSentinel:
		return encodeSentinel(t)
	case ModeV1:
		return encodeV1(t)
	}
	return nil, fmt.Errorf("unknown framing mode %q", mode)
}

// ErrorFrame is understood by every client generation.
func ErrorFrame(message string) []byte {
	return []byte(ErrorTag + message)
}

func encodeEOF(t Trailer) ([][]byte, error) {
	sources := t.Sources
	if sources == nil {
		sources = []rag.Source{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("marshal sources: %w", err)
	}
	return [][]byte{[]byte(EOFMarker), raw}, nil
}

func encodeSentinel(t Trailer) ([][]byte, error) {
	var parts []string
	if t.MessageID != "" {
		parts = append(parts, MessageIDTag+t.MessageID)
	}
	if t.Sources != nil {
		raw, err := json.Marshal(t.Sources)
		if err != nil {
			return nil, fmt.Errorf("marshal sources: %w", err)
		}
		parts = append(parts, SourcesTag+string(raw))
	}
	if t.Prompts != nil {
		raw, err := json.Marshal(t.Prompts)
		if err != nil {
			return nil, fmt.Errorf("marshal prompts: %w", err)
		}
		parts = append(parts, PromptsTag+string(raw))
	}
	return [][]byte{[]byte(strings.Join(parts, " "))}, nil
}

func encodeV1(t Trailer) ([][]byte, error) {
	var sb strings.Builder
	sb.WriteString(V1Header)

	if t.MessageID != "" {
		writeSegment(&sb, tagMessageID, t.MessageID)
	}
	if t.Sources != nil {
		raw, err := json.Marshal(t.Sources)
		if err != nil {
			return nil, fmt.Errorf("marshal sources: %w", err)
		}
		writeSegment(&sb, tagSources, string(raw))
	}
	if t.Prompts != nil {
		raw, err := json.Marshal(t.Prompts)
		if err != nil {
			return nil, fmt.Errorf("marshal prompts: %w", err)
		}
		writeSegment(&sb, tagPrompts, string(raw))
	}
	return [][]byte{[]byte(sb.String())}, nil
}

// |<tag>:<byte-length>:<value>
func writeSegment(sb *strings.Builder, tag, value string) {
	sb.WriteByte(segmentOpening)
	sb.WriteString(tag)
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(len(value)))
	sb.WriteByte(':')
	sb.WriteString(value)
}
