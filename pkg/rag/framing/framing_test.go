package framing

import (
	"strings"
	"testing"

	"rag-chat-be/pkg/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func join(frames [][]byte) string {
	var sb strings.Builder
	for _, f := range frames {
		sb.Write(f)
	}
	return sb.String()
}

var sampleTrailer = Trailer{
	MessageID: "MESSAGE-1700000000-abcd1234",
	Sources:   []rag.Source{{Title: "a.pdf", URI: "s3://bucket/a.pdf"}},
	Prompts:   []string{"One?", "Two?", "Three?"},
}

func TestEncode_Sentinel(t *testing.T) {
	frames, err := Encode(ModeSentinel, sampleTrailer)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t,
		`<!MessageId!>: MESSAGE-1700000000-abcd1234 <!Sources!>: [{"title":"a.pdf","uri":"s3://bucket/a.pdf"}] <!Prompts!>: ["One?","Two?","Three?"]`,
		string(frames[0]))
}

func TestEncode_SentinelOmitsAbsentSegments(t *testing.T) {
	frames, err := Encode(ModeSentinel, Trailer{Sources: []rag.Source{}})
	require.NoError(t, err)
	assert.Equal(t, "<!Sources!>: []", string(frames[0]))
}

func TestEncode_EOF(t *testing.T) {
	frames, err := Encode(ModeEOF, Trailer{MessageID: "ignored"})
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, EOFMarker, string(frames[0]))
	assert.Equal(t, "[]", string(frames[1]))
}

func TestEncode_V1(t *testing.T) {
	frames, err := Encode(ModeV1, Trailer{MessageID: "m-1", Prompts: []string{"a?"}})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, `<!TRAILER!>v1|id:3:m-1|fup:6:["a?"]`, string(frames[0]))
}

func TestRoundTrip_AllModes(t *testing.T) {
	answer := "The deadline is Friday."
	for _, mode := range []Mode{ModeV1, ModeSentinel} {
		t.Run(string(mode), func(t *testing.T) {
			frames, err := Encode(mode, sampleTrailer)
			require.NoError(t, err)

			d := Decode(answer + join(frames))
			assert.False(t, d.IsError)
			assert.Equal(t, answer, d.Answer)
			assert.Equal(t, sampleTrailer.MessageID, d.MessageID)
			assert.Equal(t, sampleTrailer.Sources, d.Sources)
			assert.Equal(t, sampleTrailer.Prompts, d.Prompts)
		})
	}

	t.Run("eof", func(t *testing.T) {
		frames, err := Encode(ModeEOF, sampleTrailer)
		require.NoError(t, err)
		d := Decode(answer + join(frames))
		assert.Equal(t, answer, d.Answer)
		assert.True(t, d.HasSources)
		assert.Equal(t, sampleTrailer.Sources, d.Sources)
		assert.False(t, d.HasMessageID)
	})
}

func TestDecode_V1IsUnambiguous(t *testing.T) {
	// Answer and payload both contain every marker the legacy formats rely on.
	answer := "Use <!Sources!>: and <!TRAILER!>v1|id:2:xx literally."
	tr := Trailer{
		MessageID: "id with |src:3: inside <!Prompts!>: ",
		Sources:   []rag.Source{{Title: "<!TRAILER!>v1", URI: "u|fup:1:x"}},
		Prompts:   []string{"What about <!MessageId!>: ?", "b?", "c?"},
	}
	frames, err := Encode(ModeV1, tr)
	require.NoError(t, err)

	d := Decode(answer + join(frames))
	assert.Equal(t, answer, d.Answer)
	assert.Equal(t, tr.MessageID, d.MessageID)
	assert.Equal(t, tr.Sources, d.Sources)
	assert.Equal(t, tr.Prompts, d.Prompts)
}

func TestDecode_Tolerance(t *testing.T) {
	tests := []struct {
		name        string
		stream      string
		wantAnswer  string
		wantID      bool
		wantSources bool
		wantPrompts bool
	}{
		{
			name:       "answer only",
			stream:     "just text",
			wantAnswer: "just text",
		},
		{
			name:        "sentinel without message id",
			stream:      `hi<!Sources!>: [] <!Prompts!>: ["x?"]`,
			wantAnswer:  "hi",
			wantSources: true,
			wantPrompts: true,
		},
		{
			name:        "sentinel segments out of order",
			stream:      `hi<!Prompts!>: ["x?"] <!MessageId!>: m-1`,
			wantAnswer:  "hi",
			wantID:      true,
			wantPrompts: true,
		},
		{
			name:       "unparsable sources treated as absent",
			stream:     `hi<!MessageId!>: m-1 <!Sources!>: not-json`,
			wantAnswer: "hi",
			wantID:     true,
		},
		{
			name:       "v1 with no segments",
			stream:     "hi" + V1Header,
			wantAnswer: "hi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decode(tt.stream)
			assert.Equal(t, tt.wantAnswer, d.Answer)
			assert.Equal(t, tt.wantID, d.HasMessageID)
			assert.Equal(t, tt.wantSources, d.HasSources)
			assert.Equal(t, tt.wantPrompts, d.HasPrompts)
			assert.False(t, d.IsError)
		})
	}
}

func TestDecode_ErrorFrameDiscardsAnswer(t *testing.T) {
	d := Decode("Hel" + "lo" + string(ErrorFrame("stream broke")))
	assert.True(t, d.IsError)
	assert.Equal(t, "stream broke", d.Error)
	assert.Empty(t, d.Answer)
}

func TestDecode_ErrorFrameBeforeV1Trailer(t *testing.T) {
	frames, err := Encode(ModeV1, Trailer{MessageID: "m-1"})
	require.NoError(t, err)

	d := Decode("partial" + string(ErrorFrame("stream broke")) + join(frames))
	assert.True(t, d.IsError)
	assert.Equal(t, "stream broke", d.Error)
	assert.Empty(t, d.MessageID)
}

func TestDecode_ErrorTagInsideV1ValueIsPayload(t *testing.T) {
	tr := Trailer{Sources: []rag.Source{{Title: ErrorTag + " not an error", URI: "u"}}}
	frames, err := Encode(ModeV1, tr)
	require.NoError(t, err)

	d := Decode("answer" + join(frames))
	assert.False(t, d.IsError)
	assert.Equal(t, "answer", d.Answer)
	assert.Equal(t, tr.Sources, d.Sources)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeV1, m)

	m, err = ParseMode("Sentinel")
	require.NoError(t, err)
	assert.Equal(t, ModeSentinel, m)

	_, err = ParseMode("xml")
	assert.Error(t, err)
}
