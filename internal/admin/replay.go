package admin

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var errRequestInProgress = errors.New("a request with this idempotency key is already being processed")

type recordedResponse struct {
	status    int
	body      []byte
	expiresAt time.Time
}

// replayStore keeps recorded command responses in memory for a TTL.
// An entry with a nil response marks a request in flight.
type replayStore struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]*recordedResponse
	pending map[string]struct{}
}

func newReplayStore(clock clockwork.Clock, ttl time.Duration) *replayStore {
	return &replayStore{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]*recordedResponse),
		pending: make(map[string]struct{}),
	}
}

// acquire returns the recorded response for key, or marks key as in flight
// and reports true. It reports false when another request holds key.
func (s *replayStore) acquire(key string) (*recordedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.evictLocked(now)

	if resp, ok := s.entries[key]; ok {
		return resp, false
	}

	if _, ok := s.pending[key]; ok {
		return nil, false
	}

	s.pending[key] = struct{}{}

	return nil, true
}

func (s *replayStore) commit(key string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, key)
	s.entries[key] = &recordedResponse{
		status:    status,
		body:      append([]byte(nil), body...),
		expiresAt: s.clock.Now().Add(s.ttl),
	}
}

func (s *replayStore) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, key)
}

func (s *replayStore) evictLocked(now time.Time) {
	for key, resp := range s.entries {
		if !now.Before(resp.expiresAt) {
			delete(s.entries, key)
		}
	}
}
