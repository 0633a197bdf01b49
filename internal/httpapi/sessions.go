package httpapi

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"simplegen/internal/generator"
)

// chatSession binds a conversation to the model instance serving it. The
// mutex serializes turns; Conversation itself is not safe for concurrent use.
type chatSession struct {
	mu      sync.Mutex
	modelID string
	conv    *generator.Conversation
}

// sessionStore keeps chat sessions alive across requests with idle expiry.
// Sessions are keyed by the conversation id; a hit refreshes the TTL.
type sessionStore struct {
	cache *ttlcache.Cache[string, *chatSession]
}

func newSessionStore(ttl time.Duration) *sessionStore {
	c := ttlcache.New[string, *chatSession](
		ttlcache.WithTTL[string, *chatSession](ttl),
	)
	go c.Start()
	return &sessionStore{cache: c}
}

func (s *sessionStore) get(id string) *chatSession {
	item := s.cache.Get(id)
	if item == nil {
		return nil
	}
	return item.Value()
}

func (s *sessionStore) put(sess *chatSession) string {
	id := sess.conv.ID()
	s.cache.Set(id, sess, ttlcache.DefaultTTL)
	return id
}

func (s *sessionStore) stop() { s.cache.Stop() }
