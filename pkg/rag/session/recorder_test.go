package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/ragtest"
	"rag-chat-be/pkg/sessionstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu       sync.Mutex
	session  sessionstore.Session
	getErr   error
	writeErr error
	creates  int
	appends  int
	title    string
	entry    sessionstore.ChatEntry
}

func (f *fakeStore) GetSession(ctx context.Context, userID, sessionID string) (sessionstore.Session, error) {
	return f.session, f.getErr
}

func (f *fakeStore) CreateSession(ctx context.Context, userID, sessionID, title string, entry sessionstore.ChatEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.title = title
	f.entry = entry
	if f.writeErr != nil {
		return "", f.writeErr
	}
	return fmt.Sprintf("MESSAGE-create-%d", f.creates), nil
}

func (f *fakeStore) AppendTurn(ctx context.Context, sessionID string, entry sessionstore.ChatEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	f.entry = entry
	if f.writeErr != nil {
		return "", f.writeErr
	}
	return fmt.Sprintf("MESSAGE-append-%d", f.appends), nil
}

var turn = rag.Turn{User: "q", Chatbot: "a", Sources: []rag.Source{}, Prompts: []string{"x?", "y?", "z?"}}

func TestRecord_ExactlyOneWrite(t *testing.T) {
	tests := []struct {
		name        string
		prior       sessionstore.Session
		writeErr    error
		wantCreates int
		wantAppends int
		wantID      string
	}{
		{name: "new session", prior: sessionstore.Session{}, wantCreates: 1, wantID: "MESSAGE-create-1"},
		{name: "existing session", prior: sessionstore.Session{PKSessionID: "s1"}, wantAppends: 1, wantID: "MESSAGE-append-1"},
		{name: "new session, malformed reply", prior: sessionstore.Session{}, writeErr: sessionstore.ErrMalformedResponse, wantCreates: 1},
		{name: "existing session, store down", prior: sessionstore.Session{PKSessionID: "s1"}, writeErr: errors.New("timeout"), wantAppends: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{writeErr: tt.writeErr}
			r := NewRecorder(store, &ragtest.Completer{}, logger.NewNopLogger())

			got := r.Record(context.Background(), tt.prior, "u1", "s1", "Title", turn)

			assert.Equal(t, tt.wantCreates, store.creates)
			assert.Equal(t, tt.wantAppends, store.appends)
			assert.Equal(t, 1, store.creates+store.appends)
			assert.Equal(t, tt.wantID, got.MessageID)
			assert.Equal(t, !tt.prior.Exists(), got.Created)
		})
	}
}

func TestRecord_PassesTurnAndTitle(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, &ragtest.Completer{}, logger.NewNopLogger())

	r.Record(context.Background(), sessionstore.Session{}, "u1", "s1", "Grant deadlines", turn)

	assert.Equal(t, "Grant deadlines", store.title)
	assert.Equal(t, "a", store.entry.BotResponse)
	assert.Equal(t, turn.Prompts, store.entry.SuggestedPrompts)
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name         string
		completer    *ragtest.Completer
		want         string
		wantDegraded bool
	}{
		{"clean", &ragtest.Completer{Reply: `  "Grant Deadlines"  `}, "Grant Deadlines", false},
		{"error", &ragtest.Completer{Err: errors.New("x")}, FallbackTitle, true},
		{"empty", &ragtest.Completer{Reply: `""`}, FallbackTitle, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewRecorder(&fakeStore{}, tt.completer, logger.NewNopLogger()).Title(context.Background(), "q", "a")
			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.wantDegraded, res.Degraded)
		})
	}

	c := &ragtest.Completer{Reply: "t"}
	NewRecorder(&fakeStore{}, c, logger.NewNopLogger()).Title(context.Background(), "q", "a")
	require.Len(t, c.Options, 1)
	assert.Equal(t, 25, c.Options[0].MaxTokens)
}

func TestFetchAsync(t *testing.T) {
	store := &fakeStore{session: sessionstore.Session{PKSessionID: "s1"}}
	r := NewRecorder(store, &ragtest.Completer{}, logger.NewNopLogger())

	got := <-r.FetchAsync(context.Background(), "u1", "s1")
	require.NoError(t, got.Err)
	assert.True(t, got.Session.Exists())
}
