package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rag-chat-be/pkg/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantID    string
		wantErrIs error
		wantCode  int
	}{
		{
			name:   "double encoded message ref",
			raw:    `{"statusCode":200,"body":"{\"session_id\":\"s1\",\"message_id\":\"MESSAGE-1-abcd\"}"}`,
			wantID: "MESSAGE-1-abcd",
		},
		{
			name:   "missing status code is tolerated",
			raw:    `{"body":"{\"message_id\":\"m\"}"}`,
			wantID: "m",
		},
		{
			name:      "outer not json",
			raw:       `not json`,
			wantErrIs: ErrMalformedResponse,
		},
		{
			name:      "body not json",
			raw:       `{"statusCode":200,"body":"{oops"}`,
			wantErrIs: ErrMalformedResponse,
		},
		{
			name:      "empty body",
			raw:       `{"statusCode":200,"body":""}`,
			wantErrIs: ErrMalformedResponse,
		},
		{
			name:     "error status",
			raw:      `{"statusCode":400,"body":"\"Invalid operation: nope\""}`,
			wantCode: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := DecodeBody[MessageRef]([]byte(tt.raw))
			switch {
			case tt.wantErrIs != nil:
				assert.ErrorIs(t, err, tt.wantErrIs)
			case tt.wantCode != 0:
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantCode, se.StatusCode)
				assert.Equal(t, "Invalid operation: nope", se.Message)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, ref.MessageID)
			}
		})
	}
}

func TestDecodeBody_EmptySession(t *testing.T) {
	s, err := DecodeBody[Session](EncodeResponse(200, map[string]interface{}{}))
	require.NoError(t, err)
	assert.False(t, s.Exists())
}

func TestParseRequest(t *testing.T) {
	plain := `{"operation":"get_session","session_id":"s1","user_id":"u1"}`
	wrapped, _ := json.Marshal(map[string]string{"body": plain})

	for _, in := range [][]byte{[]byte(plain), wrapped} {
		req, err := ParseRequest(in)
		require.NoError(t, err)
		assert.Equal(t, OpGetSession, req.Operation)
		assert.Equal(t, "s1", req.SessionID)
		assert.Equal(t, "u1", req.UserID)
	}
}

func TestChatEntry_AcceptsBareString(t *testing.T) {
	req, err := ParseRequest([]byte(`{"operation":"update_session","session_id":"s","new_chat_entry":"just a prompt"}`))
	require.NoError(t, err)
	require.NotNil(t, req.NewChatEntry)
	assert.Equal(t, "just a prompt", req.NewChatEntry.UserPrompt)
}

type fakeTransport struct {
	reply   []byte
	err     error
	subject string
	sent    Request
}

func (f *fakeTransport) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	f.subject = subject
	_ = json.Unmarshal(data, &f.sent)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("no deadline")
	}
	return f.reply, f.err
}

func TestClient_CreateSession(t *testing.T) {
	ft := &fakeTransport{reply: EncodeResponse(200, MessageRef{SessionID: "s1", MessageID: "MESSAGE-9-ffff0000"})}
	c := NewClient(ft, "sessions.handler", time.Second)

	entry := EntryFromTurn(rag.Turn{User: "q", Chatbot: "a", Sources: []rag.Source{}, Prompts: []string{"x?"}, ResponseTime: 1.5})
	id, err := c.CreateSession(context.Background(), "u1", "s1", "Deadlines", entry)

	require.NoError(t, err)
	assert.Equal(t, "MESSAGE-9-ffff0000", id)
	assert.Equal(t, "sessions.handler", ft.subject)
	assert.Equal(t, OpAddNewSessionWithFirstMessage, ft.sent.Operation)
	assert.Equal(t, "Deadlines", ft.sent.Title)
	require.NotNil(t, ft.sent.NewChatEntry)
	assert.Equal(t, 1.5, ft.sent.NewChatEntry.ResponseTime)
}

func TestClient_AppendTurnMalformed(t *testing.T) {
	ft := &fakeTransport{reply: []byte(`{"statusCode":200,"body":"[not an object"}`)}
	id, err := NewClient(ft, "sessions.handler", time.Second).AppendTurn(context.Background(), "s1", ChatEntry{})

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Empty(t, id)
	assert.Equal(t, OpAddMessageToExistingSession, ft.sent.Operation)
}
