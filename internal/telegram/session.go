package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	sessionKeyPrefix = "tubebeam:session:"
	sessionTTL       = time.Hour

	// editInterval keeps status edits under the chat API flood limits
	editInterval = 2500 * time.Millisecond
)

// Session tracks the per-chat state between a job start and its delivery
type Session struct {
	JobID         string `json:"job_id"`
	StatusMessage int    `json:"status_message"`
	MediaID       string `json:"media_id"`
}

// SessionStore keeps chat sessions in redis so a restart does not orphan
// status messages. Without a redis address it degrades to process memory.
type SessionStore struct {
	client *redis.Client

	mu       sync.Mutex
	mem      map[int64]*Session
	limiters map[int64]*rate.Limiter
}

// NewSessionStore connects to redis at addr, or returns a memory-only
// store when addr is empty.
func NewSessionStore(addr, password string) *SessionStore {
	s := &SessionStore{
		mem:      make(map[int64]*Session),
		limiters: make(map[int64]*rate.Limiter),
	}
	if addr != "" {
		s.client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		})
	}
	return s
}

// Get returns the session for chatID, or nil when none exists
func (s *SessionStore) Get(ctx context.Context, chatID int64) *Session {
	if s.client != nil {
		raw, err := s.client.Get(ctx, sessionKey(chatID)).Bytes()
		if err != nil {
			return nil
		}
		var sess Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return nil
		}
		return &sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem[chatID]
}

// Put stores the session for chatID
func (s *SessionStore) Put(ctx context.Context, chatID int64, sess *Session) {
	if s.client != nil {
		raw, err := json.Marshal(sess)
		if err != nil {
			return
		}
		s.client.Set(ctx, sessionKey(chatID), raw, sessionTTL)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[chatID] = sess
}

// Clear drops the session for chatID
func (s *SessionStore) Clear(ctx context.Context, chatID int64) {
	if s.client != nil {
		s.client.Del(ctx, sessionKey(chatID))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mem, chatID)
}

// AllowEdit reports whether a status edit for chatID fits the throttle.
// Dropped samples are fine, a later one always supersedes them.
func (s *SessionStore) AllowEdit(chatID int64) bool {
	s.mu.Lock()
	limiter, ok := s.limiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(editInterval), 1)
		s.limiters[chatID] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

// Close releases the redis connection if one was opened
func (s *SessionStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("%s%d", sessionKeyPrefix, chatID)
}
