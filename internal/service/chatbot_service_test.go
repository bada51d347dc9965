package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/websocket"
	"rag-chat-be/pkg/events"
	"rag-chat-be/pkg/rag/followup"
	"rag-chat-be/pkg/rag/framing"
	"rag-chat-be/pkg/rag/prompt"
	"rag-chat-be/pkg/rag/ragtest"
	"rag-chat-be/pkg/rag/retrieval"
	"rag-chat-be/pkg/rag/rewrite"
	"rag-chat-be/pkg/rag/session"
	"rag-chat-be/pkg/rag/stream"
	"rag-chat-be/pkg/sessionstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	passages []retrieval.Passage
	err      error
	got      retrieval.Query
}

func (f *fakeIndex) Query(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
	f.got = q
	return f.passages, f.err
}

type fakeTemplates struct {
	err error
}

func (f fakeTemplates) Read(ctx context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("Answer using the knowledge above."), nil
}

type fakeSessionStore struct {
	mu      sync.Mutex
	prior   sessionstore.Session
	created []sessionstore.ChatEntry
	titles  []string
	appends []sessionstore.ChatEntry
}

func (f *fakeSessionStore) GetSession(ctx context.Context, userID, sessionID string) (sessionstore.Session, error) {
	return f.prior, nil
}

func (f *fakeSessionStore) CreateSession(ctx context.Context, userID, sessionID, title string, entry sessionstore.ChatEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, entry)
	f.titles = append(f.titles, title)
	return "MESSAGE-1-created", nil
}

func (f *fakeSessionStore) AppendTurn(ctx context.Context, sessionID string, entry sessionstore.ChatEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends = append(f.appends, entry)
	return "MESSAGE-2-appended", nil
}

func (f *fakeSessionStore) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created) + len(f.appends)
}

type capturedEvents struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *capturedEvents) Publish(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return nil
}

type harness struct {
	index    *fakeIndex
	store    *fakeSessionStore
	gateway  *ragtest.Gateway
	aux      *ragtest.Completer
	streamer *ragtest.Streamer
	events   *capturedEvents
	svc      IChatbotService
}

func newHarness(st *ragtest.Stream, templates fakeTemplates, watchdog time.Duration) *harness {
	h := &harness{
		index:   &fakeIndex{},
		store:   &fakeSessionStore{},
		gateway: &ragtest.Gateway{},
		aux: &ragtest.Completer{Route: map[string]string{
			"follow-up questions": "When is it due?|||Who approves it?|||Can it be extended?",
			"session title":       `"Deadline Question"`,
		}},
		streamer: &ragtest.Streamer{Stream: st},
		events:   &capturedEvents{},
	}
	log := logger.NewNopLogger()
	h.svc = NewChatbotService(ChatbotDeps{
		Rewriter:  rewrite.NewRewriter(h.aux, 3),
		Retriever: retrieval.NewRetriever(h.index, retrieval.Config{IndexID: "kb"}),
		Prompt:    prompt.NewAssembler(templates, "system-prompt.txt"),
		Streamer:  stream.NewAdapter(h.streamer, h.gateway, log, watchdog, 5),
		FollowUps: followup.NewGenerator(h.aux),
		Recorder:  session.NewRecorder(h.store, h.aux, log),
		Gateway:   h.gateway,
		Events:    h.events,
		Framing:   framing.ModeV1,
		Logger:    log,
	})
	return h
}

var conn = websocket.ConnectionContext{ConnectionID: "conn-1", UserID: "u1"}

func chatRequest(msg string) dto.ChatRequest {
	return dto.ChatRequest{UserMessage: msg, UserID: "u1", SessionID: "s1"}
}

func score(v float64) *float64 { return &v }

func TestHandleChat_NoKnowledgeFallback(t *testing.T) {
	h := newHarness(ragtest.NewStream("It is ", "Friday."), fakeTemplates{}, time.Second)
	h.index.passages = []retrieval.Passage{{Content: "weak", Score: score(0.2), SourceURI: "s3://kb/weak.pdf"}}

	err := h.svc.HandleChat(context.Background(), conn, chatRequest(`What is the "deadline"?`))
	require.NoError(t, err)

	// empty history: no rewrite call, only quotes stripped
	assert.Equal(t, "What is the deadline?", h.index.got.Text)
	require.NotEmpty(t, h.streamer.Got)
	assert.Contains(t, h.streamer.Got[0].Content, retrieval.FallbackContent)

	require.Len(t, h.store.created, 1)
	assert.Empty(t, h.store.created[0].Sources)
	assert.NotNil(t, h.store.created[0].Sources)
	assert.Equal(t, "It is Friday.", h.store.created[0].BotResponse)
	assert.Equal(t, "Deadline Question", h.store.titles[0])

	frames := h.gateway.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, "It is ", frames[0])
	assert.Equal(t, "Friday.", frames[1])

	trailer := framing.Decode(frames[2])
	assert.Equal(t, "MESSAGE-1-created", trailer.MessageID)
	assert.True(t, trailer.HasSources)
	assert.Empty(t, trailer.Sources)
	assert.Equal(t, []string{"When is it due?", "Who approves it?", "Can it be extended?"}, trailer.Prompts)
	assert.Equal(t, 1, h.gateway.Closes())
}

func TestHandleChat_SourcesDeduplicated(t *testing.T) {
	h := newHarness(ragtest.NewStream("ok"), fakeTemplates{}, time.Second)
	h.store.prior = sessionstore.Session{PKSessionID: "s1"}
	h.index.passages = []retrieval.Passage{
		{Content: "one", Score: score(0.9), SourceURI: "a", Title: "First"},
		{Content: "two", Score: score(0.8), SourceURI: "a", Title: "Second"},
		{Content: "three", Tier: "high", SourceURI: "b"},
	}

	require.NoError(t, h.svc.HandleChat(context.Background(), conn, chatRequest("q")))

	require.Len(t, h.store.appends, 1)
	assert.Empty(t, h.store.created)
	got := h.store.appends[0].Sources
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].URI)
	assert.Equal(t, "First", got[0].Title)
	assert.Equal(t, "b", got[1].URI)

	frames := h.gateway.Frames()
	trailer := framing.Decode(frames[len(frames)-1])
	assert.Equal(t, "MESSAGE-2-appended", trailer.MessageID)
	assert.Len(t, trailer.Sources, 2)

	// existing session: no title generation
	for _, p := range h.aux.Prompts {
		assert.NotContains(t, p, "session title")
	}
}

func TestHandleChat_MidStreamErrorRecordsNothing(t *testing.T) {
	s := ragtest.NewStream("Hel", "lo", "never")
	s.FailAt = 2
	s.FailErr = errors.New("throttled")
	h := newHarness(s, fakeTemplates{}, time.Second)

	err := h.svc.HandleChat(context.Background(), conn, chatRequest("q"))
	require.ErrorIs(t, err, stream.ErrStreamFailed)

	frames := h.gateway.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, "Hello", frames[0]+frames[1])
	assert.True(t, strings.HasPrefix(frames[2], framing.ErrorTag))
	assert.Equal(t, 0, h.store.writes())
	assert.Empty(t, h.events.payloads)
}

func TestHandleChat_WatchdogSubstitutesAndRecords(t *testing.T) {
	s := ragtest.NewStream()
	s.Hang = true
	h := newHarness(s, fakeTemplates{}, 20*time.Millisecond)

	require.NoError(t, h.svc.HandleChat(context.Background(), conn, chatRequest("q")))

	frames := h.gateway.Frames()
	require.GreaterOrEqual(t, len(frames), 2)
	assert.Equal(t, stream.Apology, frames[0])

	require.Len(t, h.store.created, 1)
	assert.Equal(t, stream.Apology, h.store.created[0].BotResponse)
	assert.Len(t, h.store.created[0].SuggestedPrompts, 3)
	assert.Equal(t, 1, h.gateway.Closes())
}

func TestHandleChat_TemplateFailureAborts(t *testing.T) {
	h := newHarness(ragtest.NewStream("never"), fakeTemplates{err: errors.New("access denied")}, time.Second)

	err := h.svc.HandleChat(context.Background(), conn, chatRequest("q"))
	require.ErrorIs(t, err, ErrTemplateFetch)

	frames := h.gateway.Frames()
	require.Len(t, frames, 1)
	assert.True(t, strings.HasPrefix(frames[0], framing.ErrorTag))
	assert.Nil(t, h.streamer.Got)
	assert.Equal(t, 0, h.store.writes())
}

func TestHandleChat_PublishesTurnEvent(t *testing.T) {
	h := newHarness(ragtest.NewStream("ok"), fakeTemplates{}, time.Second)

	require.NoError(t, h.svc.HandleChat(context.Background(), conn, chatRequest("q")))

	require.Len(t, h.events.payloads, 1)
	evt, err := events.Unmarshal(h.events.payloads[0])
	require.NoError(t, err)
	turn := events.TurnRecordedFrom(evt)
	assert.Equal(t, "u1", turn.UserID)
	assert.Equal(t, "MESSAGE-1-created", turn.MessageID)
	assert.True(t, turn.NewSession)
}
