package framing

import (
	"encoding/json"
	"strconv"
	"strings"

	"rag-chat-be/pkg/rag"
)

// Decoded is what a client recovers from the concatenated frames of one response.
type Decoded struct {
	Answer       string
	MessageID    string
	HasMessageID bool
	Sources      []rag.Source
	HasSources   bool
	Prompts      []string
	HasPrompts   bool
	IsError      bool
	Error        string
}

// Decode parses a full concatenated stream. It never fails: unreadable segments are
// reported as absent and an error frame wins over everything else. Error tag text
// inside v1 segment values is payload, not an error frame.
func Decode(stream string) Decoded {
	if d, ok := decodeV1(stream); ok {
		if e, isErr := errorFrame(d.Answer); isErr {
			return e
		}
		return d
	}

	if e, isErr := errorFrame(stream); isErr {
		return e
	}

	if idx := strings.Index(stream, EOFMarker); idx >= 0 {
		d := Decoded{Answer: stream[:idx]}
		rest := strings.TrimSpace(stream[idx+len(EOFMarker):])
		var sources []rag.Source
		if rest != "" && json.Unmarshal([]byte(rest), &sources) == nil {
			d.Sources, d.HasSources = sources, true
		}
		return d
	}

	return decodeSentinel(stream)
}

func errorFrame(s string) (Decoded, bool) {
	idx := strings.Index(s, ErrorTag)
	if idx < 0 {
		return Decoded{}, false
	}
	return Decoded{IsError: true, Error: strings.TrimSpace(s[idx+len(ErrorTag):])}, true
}

// decodeV1 tries each occurrence of the header; the first one whose remainder
// parses completely as segments is the trailer. Header text inside the answer
// or inside a segment value therefore cannot confuse it.
func decodeV1(stream string) (Decoded, bool) {
	offset := 0
	for {
		idx := strings.Index(stream[offset:], V1Header)
		if idx < 0 {
			return Decoded{}, false
		}
		start := offset + idx
		if d, ok := parseV1Segments(stream[start+len(V1Header):]); ok {
			d.Answer = stream[:start]
			return d, true
		}
		offset = start + 1
	}
}

func parseV1Segments(s string) (Decoded, bool) {
	var d Decoded
	for len(s) > 0 {
		if s[0] != segmentOpening {
			return Decoded{}, false
		}
		s = s[1:]

		colon := strings.IndexByte(s, ':')
		if colon <= 0 {
			return Decoded{}, false
		}
		tag := s[:colon]
		s = s[colon+1:]

		colon = strings.IndexByte(s, ':')
		if colon <= 0 {
			return Decoded{}, false
		}
		n, err := strconv.Atoi(s[:colon])
		if err != nil || n < 0 || colon+1+n > len(s) {
			return Decoded{}, false
		}
		value := s[colon+1 : colon+1+n]
		s = s[colon+1+n:]

		switch tag {
		case tagMessageID:
			d.MessageID, d.HasMessageID = value, true
		case tagSources:
			var sources []rag.Source
			if json.Unmarshal([]byte(value), &sources) == nil {
				d.Sources, d.HasSources = sources, true
			}
		case tagPrompts:
			var prompts []string
			if json.Unmarshal([]byte(value), &prompts) == nil {
				d.Prompts, d.HasPrompts = prompts, true
			}
		}
		// Unknown tags are skipped so newer servers stay readable.
	}
	return d, true
}

func decodeSentinel(stream string) Decoded {
	tags := []string{MessageIDTag, SourcesTag, PromptsTag}
	positions := make(map[string]int, len(tags))
	first := len(stream)
	for _, tag := range tags {
		if idx := strings.Index(stream, tag); idx >= 0 {
			positions[tag] = idx
			if idx < first {
				first = idx
			}
		}
	}

	d := Decoded{Answer: stream[:first]}
	valueOf := func(tag string) (string, bool) {
		start, ok := positions[tag]
		if !ok {
			return "", false
		}
		start += len(tag)
		end := len(stream)
		for other, pos := range positions {
			if other != tag && pos >= start && pos < end {
				end = pos
			}
		}
		return strings.TrimSpace(stream[start:end]), true
	}

	if v, ok := valueOf(MessageIDTag); ok {
		d.MessageID, d.HasMessageID = v, true
	}
	if v, ok := valueOf(SourcesTag); ok {
		var sources []rag.Source
		if json.Unmarshal([]byte(v), &sources) == nil {
			d.Sources, d.HasSources = sources, true
		}
	}
	if v, ok := valueOf(PromptsTag); ok {
		var prompts []string
		if json.Unmarshal([]byte(v), &prompts) == nil {
			d.Prompts, d.HasPrompts = prompts, true
		}
	}
	return d
}
