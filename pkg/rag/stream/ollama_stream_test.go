package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rag-chat-be/pkg/llm/ollama"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ndjsonServer(chunks int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		for i := 0; i < chunks; i++ {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":"t%d "},"done":false}`+"\n", i)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
}

// Recv and Decode run on different goroutines inside Run; go test -race covers this.
func TestRun_OllamaStreamConcurrentRecvAndDecode(t *testing.T) {
	const chunks = 50
	srv := ndjsonServer(chunks)
	defer srv.Close()

	provider := ollama.NewOllamaProvider(srv.URL, "llama3")
	provider.StreamClient = &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}

	var want strings.Builder
	for i := 0; i < chunks; i++ {
		fmt.Fprintf(&want, "t%d ", i)
	}

	for run := 0; run < 20; run++ {
		pusher := &recordingPusher{}
		res, err := newAdapter(provider, pusher, 5*time.Second).Run(context.Background(), Request{ConnectionID: "c1", UserMessage: "q"})

		require.NoError(t, err)
		assert.Equal(t, StateComplete, res.State)
		assert.Equal(t, want.String(), res.Answer)
		assert.Len(t, pusher.all(), chunks)
	}
}
