package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/framing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedStream replays envelopes, then an optional error, then blocks until closed when hang is set.
type scriptedStream struct {
	chunks  []string
	failAt  int
	failErr error
	hang    bool

	i      int
	closed chan struct{}
	once   sync.Once
}

func newScripted(chunks ...string) *scriptedStream {
	return &scriptedStream{chunks: chunks, failAt: -1, closed: make(chan struct{})}
}

func (s *scriptedStream) Recv() ([]byte, error) {
	if s.failAt >= 0 && s.i == s.failAt {
		return nil, s.failErr
	}
	if s.i < len(s.chunks) {
		c := s.chunks[s.i]
		s.i++
		raw, _ := json.Marshal(map[string]string{"text": c})
		return raw, nil
	}
	if s.hang {
		<-s.closed
		return nil, errors.New("stream closed")
	}
	return nil, io.EOF
}

func (s *scriptedStream) Decode(raw []byte) (string, error) {
	var env map[string]string
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	return env["text"], nil
}

func (s *scriptedStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeStreamer struct {
	stream *scriptedStream
	err    error
	got    []llm.Message
}

func (f *fakeStreamer) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.ChunkStream, error) {
	f.got = history
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type recordingPusher struct {
	mu     sync.Mutex
	frames []string
	failOn map[int]bool
}

func (p *recordingPusher) Push(ctx context.Context, connectionID string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.frames)
	p.frames = append(p.frames, string(data))
	if p.failOn[idx] {
		return errors.New("gone")
	}
	return nil
}

func (p *recordingPusher) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.frames...)
}

func newAdapter(s Streamer, p Pusher, watchdog time.Duration) *Adapter {
	return NewAdapter(s, p, logger.NewNopLogger(), watchdog, 5)
}

func TestRun_PushesEachChunkInOrder(t *testing.T) {
	streamer := &fakeStreamer{stream: newScripted("The ", "", "deadline ", "is Friday.")}
	pusher := &recordingPusher{}

	res, err := newAdapter(streamer, pusher, time.Second).Run(context.Background(), Request{ConnectionID: "c1", UserMessage: "q"})

	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, []string{"The ", "deadline ", "is Friday."}, pusher.all())
	assert.Equal(t, strings.Join(pusher.all(), ""), res.Answer)
}

func TestRun_PushFailureDoesNotStopStream(t *testing.T) {
	streamer := &fakeStreamer{stream: newScripted("a", "b", "c")}
	pusher := &recordingPusher{failOn: map[int]bool{1: true}}

	res, err := newAdapter(streamer, pusher, time.Second).Run(context.Background(), Request{ConnectionID: "c1"})

	require.NoError(t, err)
	assert.Equal(t, "abc", res.Answer)
	assert.Equal(t, []string{"a", "b", "c"}, pusher.all())
}

func TestRun_MidStreamErrorAborts(t *testing.T) {
	s := newScripted("Hel", "lo", "never")
	s.failAt = 2
	s.failErr = errors.New("throttled")
	pusher := &recordingPusher{}

	res, err := newAdapter(&fakeStreamer{stream: s}, pusher, time.Second).Run(context.Background(), Request{ConnectionID: "c1"})

	require.ErrorIs(t, err, ErrStreamFailed)
	assert.Equal(t, StateFailed, res.State)
	frames := pusher.all()
	require.Len(t, frames, 3)
	assert.Equal(t, "Hel", frames[0])
	assert.Equal(t, "lo", frames[1])
	assert.True(t, strings.HasPrefix(frames[2], framing.ErrorTag))

	d := framing.Decode(strings.Join(frames, ""))
	assert.True(t, d.IsError)
}

func TestRun_DecodeErrorAborts(t *testing.T) {
	s := newScripted("ok")
	streamer := &badDecodeStreamer{inner: s}
	pusher := &recordingPusher{}

	_, err := newAdapter(streamer, pusher, time.Second).Run(context.Background(), Request{ConnectionID: "c1"})

	require.ErrorIs(t, err, ErrStreamFailed)
	frames := pusher.all()
	require.Len(t, frames, 1)
	assert.True(t, strings.HasPrefix(frames[0], framing.ErrorTag))
}

type badDecodeStreamer struct{ inner *scriptedStream }

func (b *badDecodeStreamer) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.ChunkStream, error) {
	return &badDecode{b.inner}, nil
}

type badDecode struct{ *scriptedStream }

func (b *badDecode) Decode(raw []byte) (string, error) { return "", errors.New("bad envelope") }

func TestRun_OpenFailureAborts(t *testing.T) {
	pusher := &recordingPusher{}
	_, err := newAdapter(&fakeStreamer{err: errors.New("refused")}, pusher, time.Second).Run(context.Background(), Request{ConnectionID: "c1"})

	require.ErrorIs(t, err, ErrStreamFailed)
	require.Len(t, pusher.all(), 1)
	assert.Equal(t, framing.ErrorTag+"refused", pusher.all()[0])
}

func TestRun_WatchdogSubstitutesApology(t *testing.T) {
	s := newScripted()
	s.hang = true
	pusher := &recordingPusher{}

	start := time.Now()
	res, err := newAdapter(&fakeStreamer{stream: s}, pusher, 50*time.Millisecond).Run(context.Background(), Request{ConnectionID: "c1"})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.True(t, res.Substituted)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, Apology, res.Answer)
	assert.Equal(t, []string{Apology}, pusher.all())
}

func TestRun_WatchdogIgnoredOnceTextArrived(t *testing.T) {
	s := newScripted("partial")
	s.hang = true
	pusher := &recordingPusher{}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	res, err := newAdapter(&fakeStreamer{stream: s}, pusher, 20*time.Millisecond).Run(ctx, Request{ConnectionID: "c1"})

	// Only the caller's deadline ends this one, so it is reported as a failure rather than an apology.
	require.ErrorIs(t, err, ErrStreamFailed)
	assert.False(t, res.Substituted)
	assert.Equal(t, "partial", pusher.all()[0])
}

func TestRun_EmptyStreamSubstitutesApology(t *testing.T) {
	pusher := &recordingPusher{}
	res, err := newAdapter(&fakeStreamer{stream: newScripted("", "")}, pusher, time.Second).Run(context.Background(), Request{ConnectionID: "c1"})

	require.NoError(t, err)
	assert.True(t, res.Substituted)
	assert.Equal(t, []string{Apology}, pusher.all())
}

func TestRun_SubmitsSystemHistoryAndMessage(t *testing.T) {
	streamer := &fakeStreamer{stream: newScripted("x")}
	var history []rag.HistoryTurn
	for i := 0; i < 8; i++ {
		history = append(history, rag.HistoryTurn{User: "u", Chatbot: "b"})
	}
	history[7].User = "latest-user"

	_, err := newAdapter(streamer, &recordingPusher{}, time.Second).Run(context.Background(), Request{
		SystemPrompt: "Knowledge: k\nInstructions: t",
		History:      history,
		UserMessage:  "now?",
	})
	require.NoError(t, err)

	got := streamer.got
	require.Len(t, got, 1+5*2+1)
	assert.Equal(t, "system", got[0].Role)
	assert.Equal(t, "Knowledge: k\nInstructions: t", got[0].Content)
	assert.Equal(t, "latest-user", got[len(got)-3].Content)
	assert.Equal(t, llm.Message{Role: "user", Content: "now?"}, got[len(got)-1])
}
