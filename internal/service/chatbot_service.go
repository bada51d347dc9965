package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/tracer"
	"rag-chat-be/internal/websocket"
	"rag-chat-be/pkg/events"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/framing"
	"rag-chat-be/pkg/rag/outcome"
	"rag-chat-be/pkg/rag/retrieval"
	"rag-chat-be/pkg/rag/session"
	"rag-chat-be/pkg/rag/stream"
	"rag-chat-be/pkg/sessionstore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var ErrTemplateFetch = errors.New("system prompt could not be loaded")

// IChatbotService runs the chat pipeline for one inbound request.
type IChatbotService interface {
	HandleChat(ctx context.Context, cc websocket.ConnectionContext, req dto.ChatRequest) error
}

type Rewriter interface {
	Rewrite(ctx context.Context, message string, history []rag.HistoryTurn) outcome.Result[string]
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) outcome.Result[retrieval.Result]
}

type PromptBuilder interface {
	Build(ctx context.Context, content string) (string, error)
}

type AnswerStreamer interface {
	Run(ctx context.Context, req stream.Request) (stream.Result, error)
}

type FollowUpGenerator interface {
	Generate(ctx context.Context, userMessage, botResponse string) outcome.Result[[]string]
}

type TurnRecorder interface {
	FetchAsync(ctx context.Context, userID, sessionID string) <-chan session.Fetched
	Title(ctx context.Context, userMessage, botResponse string) outcome.Result[string]
	Record(ctx context.Context, prior sessionstore.Session, userID, sessionID, title string, turn rag.Turn) session.Recorded
}

// Gateway pushes frames to, and closes, a client connection.
type Gateway interface {
	Push(ctx context.Context, connectionID string, data []byte) error
	Close(ctx context.Context, connectionID string) error
}

type ChatbotDeps struct {
	Rewriter  Rewriter
	Retriever Retriever
	Prompt    PromptBuilder
	Streamer  AnswerStreamer
	FollowUps FollowUpGenerator
	Recorder  TurnRecorder
	Gateway   Gateway
	Events    IPublisherService
	Framing   framing.Mode
	Logger    logger.ILogger
}

type chatbotService struct {
	ChatbotDeps
	now func() time.Time
}

func NewChatbotService(deps ChatbotDeps) IChatbotService {
	if deps.Framing == "" {
		deps.Framing = framing.ModeV1
	}
	return &chatbotService{ChatbotDeps: deps, now: time.Now}
}

// HandleChat runs rewrite, retrieve, assemble, stream, then follow-ups and title in
// parallel, records the turn, pushes the trailer and closes the connection.
func (s *chatbotService) HandleChat(ctx context.Context, cc websocket.ConnectionContext, req dto.ChatRequest) error {
	ctx, span := tracer.Tracer().Start(ctx, "chatbot.HandleChat")
	defer span.End()
	span.SetAttributes(
		attribute.String("connection_id", cc.ConnectionID),
		attribute.String("session_id", req.SessionID),
	)

	start := s.now()
	details := func(extra map[string]interface{}) map[string]interface{} {
		d := map[string]interface{}{
			"connection_id": cc.ConnectionID,
			"session_id":    req.SessionID,
			"user_id":       req.UserID,
		}
		for k, v := range extra {
			d[k] = v
		}
		return d
	}

	history := req.History()
	prior := s.Recorder.FetchAsync(ctx, req.UserID, req.SessionID)

	query := s.Rewriter.Rewrite(ctx, req.UserMessage, history)
	if query.Degraded {
		s.Logger.Warn("ChatbotService", "Rewrite degraded, using original message", details(map[string]interface{}{"error": query.Cause}))
	}

	knowledge := s.Retriever.Retrieve(ctx, query.Value)
	if knowledge.Degraded {
		s.Logger.Warn("ChatbotService", "Retrieval degraded, answering without knowledge", details(map[string]interface{}{"error": knowledge.Cause}))
	}

	systemPrompt, err := s.Prompt.Build(ctx, knowledge.Value.Content)
	if err != nil {
		s.Logger.Error("ChatbotService", "Failed to assemble prompt", details(map[string]interface{}{"error": err}))
		s.push(ctx, cc.ConnectionID, framing.ErrorFrame(ErrTemplateFetch.Error()), details)
		span.RecordError(err)
		span.SetStatus(codes.Error, "prompt")
		return fmt.Errorf("%w: %v", ErrTemplateFetch, err)
	}

	answer, err := s.Streamer.Run(ctx, stream.Request{
		ConnectionID: cc.ConnectionID,
		SessionID:    req.SessionID,
		SystemPrompt: systemPrompt,
		History:      history,
		UserMessage:  req.UserMessage,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream")
		return err
	}
	responseTime := s.now().Sub(start).Seconds()

	var fetched session.Fetched
	select {
	case fetched = <-prior:
	case <-ctx.Done():
		fetched = session.Fetched{Err: ctx.Err()}
	}
	if fetched.Err != nil {
		s.Logger.Warn("ChatbotService", "Prior session lookup failed, treating as new", details(map[string]interface{}{"error": fetched.Err}))
	}
	isNew := !fetched.Session.Exists()

	var (
		prompts outcome.Result[[]string]
		title   outcome.Result[string]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		prompts = s.FollowUps.Generate(gctx, req.UserMessage, answer.Answer)
		return nil
	})
	if isNew {
		g.Go(func() error {
			title = s.Recorder.Title(gctx, req.UserMessage, answer.Answer)
			return nil
		})
	}
	_ = g.Wait()

	if prompts.Degraded {
		s.Logger.Warn("ChatbotService", "Follow-up generation degraded", details(map[string]interface{}{"error": prompts.Cause}))
	}
	if title.Degraded {
		s.Logger.Warn("ChatbotService", "Title generation degraded", details(map[string]interface{}{"error": title.Cause}))
	}

	sources := knowledge.Value.Sources
	if sources == nil {
		sources = []rag.Source{}
	}
	turn := rag.Turn{
		User:         req.UserMessage,
		Chatbot:      answer.Answer,
		Sources:      sources,
		Prompts:      prompts.Value,
		ResponseTime: responseTime,
	}
	recorded := s.Recorder.Record(ctx, fetched.Session, req.UserID, req.SessionID, title.Value, turn)

	frames, err := framing.Encode(s.Framing, framing.Trailer{
		MessageID: recorded.MessageID,
		Sources:   turn.Sources,
		Prompts:   turn.Prompts,
	})
	if err != nil {
		s.Logger.Error("ChatbotService", "Failed to encode trailer", details(map[string]interface{}{"error": err}))
	}
	for _, f := range frames {
		s.push(ctx, cc.ConnectionID, f, details)
	}

	s.publishTurn(ctx, req, recorded, responseTime, details)

	if err := s.Gateway.Close(ctx, cc.ConnectionID); err != nil {
		s.Logger.Warn("ChatbotService", "Failed to close connection", details(map[string]interface{}{"error": err}))
	}

	s.Logger.Info("ChatbotService", "Chat turn completed", details(map[string]interface{}{
		"message_id":    recorded.MessageID,
		"new_session":   isNew,
		"stream_state":  answer.State.String(),
		"response_time": responseTime,
	}))
	return nil
}

func (s *chatbotService) push(ctx context.Context, connectionID string, data []byte, details func(map[string]interface{}) map[string]interface{}) {
	if err := s.Gateway.Push(ctx, connectionID, data); err != nil {
		s.Logger.Warn("ChatbotService", "Push failed", details(map[string]interface{}{"error": err}))
	}
}

func (s *chatbotService) publishTurn(ctx context.Context, req dto.ChatRequest, recorded session.Recorded, responseTime float64, details func(map[string]interface{}) map[string]interface{}) {
	if s.Events == nil {
		return
	}
	payload, err := events.Marshal(events.TurnRecorded{
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		MessageID:    recorded.MessageID,
		ResponseTime: responseTime,
		NewSession:   recorded.Created,
		OccurredAt:   s.now(),
	})
	if err == nil {
		err = s.Events.Publish(ctx, payload)
	}
	if err != nil {
		s.Logger.Warn("ChatbotService", "Failed to publish turn event", details(map[string]interface{}{"error": err}))
	}
}
