package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the append-only chat transcript.
type Store interface {
	// Append persists a message, assigning ID and Timestamp when unset.
	Append(ctx context.Context, message Message) (Message, error)
	// List returns all messages newest first.
	List(ctx context.Context) ([]Message, error)
}

// Prepare fills the identifier and timestamp of a new message.
func Prepare(message Message, now time.Time) Message {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = now.UTC()
	}
	return message
}

// MemoryStore keeps the transcript in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []Message
}

// NewMemoryStore returns an empty transcript.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make([]Message, 0, 16)}
}

// Append adds a message to the transcript.
func (s *MemoryStore) Append(_ context.Context, message Message) (Message, error) {
	message = Prepare(message, time.Now())

	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	return message, nil
}

// List returns a copy of the transcript, newest first. Messages sharing a
// timestamp keep reverse insertion order.
func (s *MemoryStore) List(_ context.Context) ([]Message, error) {
	s.mu.RLock()
	out := make([]Message, len(s.messages))
	for i, msg := range s.messages {
		out[len(out)-1-i] = msg
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
