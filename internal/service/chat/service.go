package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/luxbus/backend/internal/analysis/busquery"
	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
	"github.com/zhouzirui/luxbus/backend/internal/model/chat"
	"github.com/zhouzirui/luxbus/backend/pkg/log"
)

var (
	// ErrValidation marks bad or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrStorage marks a failed read or write of the backing store.
	ErrStorage = errors.New("storage failure")
	// ErrExternalService marks a failed or timed out language model call.
	// It is logged and answered by the fallback, never returned.
	ErrExternalService = errors.New("external service failure")
)

const defaultResponderTimeout = 10 * time.Second

// Responder produces an answer from the hosted language model.
type Responder interface {
	GenerateResponse(ctx context.Context, buses []bus.Bus, query string) (string, error)
}

// StreamResponder is a Responder that can stream partial answers.
type StreamResponder interface {
	Responder
	StreamingEnabled() bool
	StreamResponse(ctx context.Context, buses []bus.Bus, query string, emit func(delta string)) (string, error)
}

// Reply is the answer returned to the rider.
type Reply struct {
	Text string `json:"text"`
}

// Chunk is one piece of a streamed reply. Replace marks text that
// supersedes every chunk emitted before it, as when the keyword fallback
// takes over from a model stream that failed midway.
type Chunk struct {
	Text    string
	Replace bool
}

// Option customises a Service.
type Option func(*Service)

// WithResponder sets the language model collaborator. Without one every
// query is answered by the keyword fallback.
func WithResponder(r Responder) Option {
	return func(s *Service) { s.responder = r }
}

// WithResponderTimeout bounds each language model call.
func WithResponderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Service answers rider queries and records the transcript.
type Service struct {
	buses     bus.Store
	messages  chat.Store
	responder Responder
	timeout   time.Duration
}

// NewService wires the query flow over the given stores.
func NewService(buses bus.Store, messages chat.Store, opts ...Option) *Service {
	svc := &Service{
		buses:    buses,
		messages: messages,
		timeout:  defaultResponderTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// HandleQuery records the query, answers it and records the answer.
func (s *Service) HandleQuery(ctx context.Context, query string) (Reply, error) {
	return s.handle(ctx, query, nil)
}

// StreamQuery behaves like HandleQuery but forwards partial answers to emit
// as they arrive. A fallback answer is emitted as a single chunk, flagged
// Replace when model output was already emitted.
func (s *Service) StreamQuery(ctx context.Context, query string, emit func(Chunk)) (Reply, error) {
	if emit == nil {
		emit = func(Chunk) {}
	}
	return s.handle(ctx, query, emit)
}

// Messages returns the transcript newest first.
func (s *Service) Messages(ctx context.Context) ([]chat.Message, error) {
	messages, err := s.messages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list chat messages: %w", ErrStorage, err)
	}
	return messages, nil
}

func (s *Service) handle(ctx context.Context, query string, emit func(Chunk)) (Reply, error) {
	if strings.TrimSpace(query) == "" {
		return Reply{}, fmt.Errorf("%w: query cannot be empty", ErrValidation)
	}

	// The transcript is written at least once even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	if _, err := s.messages.Append(ctx, chat.Message{Content: query, IsUser: true}); err != nil {
		return Reply{}, fmt.Errorf("%w: save user message: %w", ErrStorage, err)
	}

	snapshot, err := s.buses.List(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: list buses: %w", ErrStorage, err)
	}

	var (
		streamed bool
		forward  func(string)
	)
	if emit != nil {
		forward = func(delta string) {
			streamed = true
			emit(Chunk{Text: delta})
		}
	}

	text, err := s.respond(ctx, snapshot, query, forward)
	if err != nil {
		log.Warnf("[chat] %v, using keyword fallback", err)
		text = busquery.Synthesize(query, snapshot)
		if emit != nil {
			emit(Chunk{Text: text, Replace: streamed})
		}
	}

	if _, err := s.messages.Append(ctx, chat.Message{Content: text, IsUser: false}); err != nil {
		log.Error("[chat] failed to save assistant message", err)
	}

	return Reply{Text: text}, nil
}

func (s *Service) respond(ctx context.Context, snapshot []bus.Bus, query string, emit func(string)) (string, error) {
	if s.responder == nil {
		return "", fmt.Errorf("%w: no language model configured", ErrExternalService)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		text string
		err  error
	)
	if streamer, ok := s.responder.(StreamResponder); ok && emit != nil && streamer.StreamingEnabled() {
		text, err = streamer.StreamResponse(callCtx, snapshot, query, emit)
	} else {
		text, err = s.responder.GenerateResponse(callCtx, snapshot, query)
		if err == nil && emit != nil && strings.TrimSpace(text) != "" {
			emit(text)
		}
	}

	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExternalService, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response", ErrExternalService)
	}
	return text, nil
}
