package memory

import (
	"sort"
	"time"

	"rag-chat-be/internal/websocket"

	"github.com/patrickmn/go-cache"
)

// ConnectionRepository holds authorization contexts of live sockets.
type ConnectionRepository struct {
	cache *cache.Cache
}

func NewConnectionRepository() *ConnectionRepository {
	// Entries are deleted on disconnect; expiry only reaps sockets that vanished without one.
	c := cache.New(2*time.Hour, 10*time.Minute)
	return &ConnectionRepository{
		cache: c,
	}
}

func (r *ConnectionRepository) Save(cc websocket.ConnectionContext) {
	r.cache.Set(cc.ConnectionID, cc, cache.DefaultExpiration)
}

func (r *ConnectionRepository) Get(connectionID string) (websocket.ConnectionContext, bool) {
	if x, found := r.cache.Get(connectionID); found {
		return x.(websocket.ConnectionContext), true
	}
	return websocket.ConnectionContext{}, false
}

func (r *ConnectionRepository) Delete(connectionID string) {
	r.cache.Delete(connectionID)
}

// List returns live contexts, oldest connection first.
func (r *ConnectionRepository) List() []websocket.ConnectionContext {
	items := r.cache.Items()
	out := make([]websocket.ConnectionContext, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(websocket.ConnectionContext))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectionID < out[j].ConnectionID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

func (r *ConnectionRepository) Count() int {
	return r.cache.ItemCount()
}
