package ragtest

import (
	"context"
	"errors"
	"io"
	"sync"

	"rag-chat-be/pkg/llm"
)

// Stream replays text chunks as raw envelopes. FailAt >= 0 returns FailErr at that index;
// Hang blocks after the last chunk until Close.
type Stream struct {
	Chunks  []string
	FailAt  int
	FailErr error
	Hang    bool

	mu     sync.Mutex
	i      int
	closed chan struct{}
	once   sync.Once
}

func NewStream(chunks ...string) *Stream {
	return &Stream{Chunks: chunks, FailAt: -1, closed: make(chan struct{})}
}

func (s *Stream) Recv() ([]byte, error) {
	s.mu.Lock()
	if s.FailAt >= 0 && s.i == s.FailAt {
		s.mu.Unlock()
		return nil, s.FailErr
	}
	if s.i < len(s.Chunks) {
		c := s.Chunks[s.i]
		s.i++
		s.mu.Unlock()
		return []byte(c), nil
	}
	s.mu.Unlock()
	if s.Hang {
		<-s.closed
		return nil, errors.New("stream closed")
	}
	return nil, io.EOF
}

func (s *Stream) Decode(raw []byte) (string, error) {
	return string(raw), nil
}

func (s *Stream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// Streamer hands out one scripted stream.
type Streamer struct {
	Stream *Stream
	Err    error

	mu  sync.Mutex
	Got []llm.Message
}

func (f *Streamer) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.ChunkStream, error) {
	f.mu.Lock()
	f.Got = history
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Stream, nil
}

// Gateway records pushed frames and closes per connection.
type Gateway struct {
	mu     sync.Mutex
	frames []string
	closes int
}

func (g *Gateway) Push(ctx context.Context, connectionID string, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frames = append(g.frames, string(data))
	return nil
}

func (g *Gateway) Close(ctx context.Context, connectionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closes++
	return nil
}

func (g *Gateway) Frames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.frames...)
}

func (g *Gateway) Closes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closes
}
