package outbox

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore is an in-process Store used in tests and local development.
type memoryStore struct {
	mu       sync.Mutex
	messages map[string]*Message
}

func NewMemoryStore() Store {
	return &memoryStore{messages: make(map[string]*Message)}
}

func (s *memoryStore) Insert(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = &msg
	return nil
}

func (s *memoryStore) FetchDue(_ context.Context, now time.Time, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Message
	for _, msg := range s.messages {
		if msg.Status != StatusPending || msg.SendAfter.After(now) {
			continue
		}
		if msg.NextRetry != nil && msg.NextRetry.After(now) {
			continue
		}
		due = append(due, *msg)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memoryStore) MarkSent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.Status != StatusPending {
		return ErrMessageNotFound
	}
	msg.Status = StatusSent
	msg.SentAt = &at
	msg.NextRetry = nil
	msg.ErrorMessage = ""
	return nil
}

func (s *memoryStore) MarkRetry(_ context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.Status != StatusPending {
		return ErrMessageNotFound
	}
	msg.RetryCount = retryCount
	msg.NextRetry = &nextRetry
	msg.ErrorMessage = errMsg
	return nil
}

func (s *memoryStore) MarkFailed(_ context.Context, id string, retryCount int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	msg.Status = StatusFailed
	msg.RetryCount = retryCount
	msg.NextRetry = nil
	msg.ErrorMessage = errMsg
	return nil
}

func (s *memoryStore) RequeueFailed(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, msg := range s.messages {
		if msg.Status == StatusFailed && msg.RetryCount < msg.MaxRetries {
			msg.Status = StatusPending
			msg.NextRetry = nil
			msg.ErrorMessage = ""
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) Stats(_ context.Context, since time.Time) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{ByType: map[string]int{}}
	retrySum := 0
	for _, msg := range s.messages {
		if msg.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		stats.ByType[msg.Type]++
		retrySum += msg.RetryCount
		switch msg.Status {
		case StatusPending:
			stats.Pending++
		case StatusSent:
			stats.Sent++
		case StatusFailed:
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.AvgRetryCount = float64(retrySum) / float64(stats.Total)
	}
	return stats, nil
}

// Get returns a copy of a stored message. Test helper.
func (s *memoryStore) Get(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return Message{}, false
	}
	return *msg, true
}
