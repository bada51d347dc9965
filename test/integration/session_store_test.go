package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/internal/service"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/sessionstore"

	pktNats "rag-chat-be/pkg/nats"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSessionStoreRoundTrip drives the store client over NATS against the postgres-backed handler.
func TestSessionStoreRoundTrip(t *testing.T) {
	db := openDB(t)
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		t.Skip("Skipping integration test: NATS_URL not set")
	}

	nc, err := pktNats.Connect(natsURL)
	require.NoError(t, err)
	defer nc.Close()

	subject := "sessions.it." + uuid.NewString()
	responder := pktNats.NewResponder(nc)
	handler := service.NewSessionHandlerService(unitofwork.NewRepositoryFactory(db), logger.NewNopLogger())
	require.NoError(t, responder.Serve(subject, "it", handler.Handle))
	defer responder.Drain()

	client := sessionstore.NewClient(pktNats.NewRequester(nc), subject, 5*time.Second)
	ctx := context.Background()
	sessionID := "it-" + uuid.NewString()
	t.Cleanup(func() { _ = client.DeleteSession(ctx, "", sessionID) })

	prior, err := client.GetSession(ctx, "it-user", sessionID)
	require.NoError(t, err)
	assert.False(t, prior.Exists())

	first, err := client.CreateSession(ctx, "it-user", sessionID, "Round trip", sessionstore.ChatEntry{
		UserPrompt:  "hello",
		BotResponse: "hi",
		Sources:     []rag.Source{{Title: "Doc", URI: "s3://kb/doc.pdf"}},
	})
	require.NoError(t, err)

	second, err := client.AppendTurn(ctx, sessionID, sessionstore.ChatEntry{UserPrompt: "again", BotResponse: "sure"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	got, err := client.GetSession(ctx, "it-user", sessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	require.Len(t, got.ChatHistory, 2)
	assert.Equal(t, first, got.ChatHistory[0].MessageID)

	list, err := client.ListSessions(ctx, "it-user", false)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	_, err = client.AppendTurn(ctx, "missing-"+sessionID, sessionstore.ChatEntry{UserPrompt: "x"})
	var se *sessionstore.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.StatusCode)
}
