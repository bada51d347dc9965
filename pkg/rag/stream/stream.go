// Package stream drives one generation stream and relays each decoded chunk to the client as it arrives.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/framing"
)

const (
	DefaultWatchdog     = 60 * time.Second
	DefaultHistoryTurns = 5

	Apology = "I'm sorry, I wasn't able to generate a response in time. Please try asking your question again."
)

var ErrStreamFailed = errors.New("generation stream failed")

type State int

const (
	StateInit State = iota
	StateStreaming
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateStreaming:
		return "STREAMING"
	case StateComplete:
		return "COMPLETE"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Pusher delivers one text frame to a connection.
type Pusher interface {
	Push(ctx context.Context, connectionID string, data []byte) error
}

type Streamer interface {
	ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.ChunkStream, error)
}

type Request struct {
	ConnectionID string
	SessionID    string
	SystemPrompt string
	History      []rag.HistoryTurn
	UserMessage  string
}

type Result struct {
	Answer string
	State  State
	// Substituted is set when the apology replaced an answer that never arrived.
	Substituted bool
}

type Adapter struct {
	streamer     Streamer
	pusher       Pusher
	logger       logger.ILogger
	watchdog     time.Duration
	historyTurns int
}

func NewAdapter(streamer Streamer, pusher Pusher, log logger.ILogger, watchdog time.Duration, historyTurns int) *Adapter {
	if watchdog <= 0 {
		watchdog = DefaultWatchdog
	}
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &Adapter{
		streamer:     streamer,
		pusher:       pusher,
		logger:       log,
		watchdog:     watchdog,
		historyTurns: historyTurns,
	}
}

type event struct {
	raw []byte
	err error
}

// Run streams one answer. A returned error means the request must abort: the
// error frame has already been pushed and nothing should be recorded.
func (a *Adapter) Run(ctx context.Context, req Request) (Result, error) {
	res := Result{State: StateInit}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cs, err := a.streamer.ChatStream(streamCtx, a.messages(req))
	if err != nil {
		return a.fail(ctx, req, res, err)
	}
	defer cs.Close()

	res.State = StateStreaming
	events := make(chan event)
	go receive(streamCtx, cs, events)

	watchdog := time.NewTimer(a.watchdog)
	defer watchdog.Stop()

	var answer strings.Builder
	for {
		select {
		case ev := <-events:
			if errors.Is(ev.err, io.EOF) {
				if answer.Len() == 0 {
					a.logger.Warn("StreamAdapter", "Stream ended without text, substituting apology", a.details(req, nil))
					return a.substitute(ctx, req, res), nil
				}
				res.Answer = answer.String()
				res.State = StateComplete
				return res, nil
			}
			if ev.err != nil {
				res.Answer = answer.String()
				return a.fail(ctx, req, res, ev.err)
			}

			text, err := cs.Decode(ev.raw)
			if err != nil {
				res.Answer = answer.String()
				return a.fail(ctx, req, res, err)
			}
			if text == "" {
				continue
			}
			if answer.Len() == 0 {
				watchdog.Stop()
			}
			answer.WriteString(text)
			a.push(ctx, req, []byte(text))

		case <-watchdog.C:
			if answer.Len() > 0 {
				continue
			}
			a.logger.Warn("StreamAdapter", "No chunk before watchdog expiry, substituting apology", a.details(req, map[string]interface{}{
				"watchdog": a.watchdog.String(),
			}))
			// Best effort only; the provider may keep generating upstream.
			cancel()
			return a.substitute(ctx, req, res), nil

		case <-ctx.Done():
			res.Answer = answer.String()
			return a.fail(ctx, req, res, ctx.Err())
		}
	}
}

func receive(ctx context.Context, cs llm.ChunkStream, out chan<- event) {
	for {
		raw, err := cs.Recv()
		select {
		case out <- event{raw: raw, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (a *Adapter) messages(req Request) []llm.Message {
	history := rag.LastTurns(req.History, a.historyTurns)
	msgs := make([]llm.Message, 0, len(history)*2+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: req.SystemPrompt})
	msgs = append(msgs, rag.ToMessages(history)...)
	msgs = append(msgs, llm.Message{Role: "user", Content: req.UserMessage})
	return msgs
}

func (a *Adapter) substitute(ctx context.Context, req Request, res Result) Result {
	a.push(ctx, req, []byte(Apology))
	res.Answer = Apology
	res.State = StateFailed
	res.Substituted = true
	return res
}

func (a *Adapter) fail(ctx context.Context, req Request, res Result, cause error) (Result, error) {
	res.State = StateFailed
	a.logger.Error("StreamAdapter", "Generation stream failed", a.details(req, map[string]interface{}{
		"error":        cause,
		"partial_size": len(res.Answer),
	}))
	// The request context may already be gone; the client still needs the error frame.
	a.push(context.WithoutCancel(ctx), req, framing.ErrorFrame(cause.Error()))
	return res, fmt.Errorf("%w: %v", ErrStreamFailed, cause)
}

// push never fails the stream; the client may simply have gone away.
func (a *Adapter) push(ctx context.Context, req Request, data []byte) {
	if err := a.pusher.Push(ctx, req.ConnectionID, data); err != nil {
		a.logger.Warn("StreamAdapter", "Push failed", a.details(req, map[string]interface{}{"error": err.Error()}))
	}
}

func (a *Adapter) details(req Request, extra map[string]interface{}) map[string]interface{} {
	d := map[string]interface{}{
		"connection_id": req.ConnectionID,
		"session_id":    req.SessionID,
	}
	for k, v := range extra {
		d[k] = v
	}
	return d
}
