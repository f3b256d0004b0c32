package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/luxbus/backend/internal/config"
	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
	"github.com/zhouzirui/luxbus/backend/pkg/log"
)

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("language model returned an empty response")

// Service answers rider questions through the hosted chat model.
type Service struct {
	template PromptTemplate
	cfg      config.AIConfig
	chain    compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the chat model from cfg and compiles the prompt chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg)
}

// NewServiceWithModel compiles the prompt chain around an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, cfg config.AIConfig) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		template: DefaultPromptTemplate(),
		cfg:      cfg,
		chain:    runnable,
	}, nil
}

// StreamingEnabled reports whether responses may be streamed.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// GenerateResponse asks the model to answer query given the bus snapshot.
func (s *Service) GenerateResponse(ctx context.Context, buses []bus.Bus, query string) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(buses, query))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyResponse
	}

	log.Infof("[ai] generated response buses=%d length=%d", len(buses), len(response.Content))
	return response.Content, nil
}

// StreamResponse streams the model answer, calling emit for every non-empty
// chunk, and returns the concatenated text.
func (s *Service) StreamResponse(ctx context.Context, buses []bus.Bus, query string, emit func(delta string)) (string, error) {
	if !s.StreamingEnabled() {
		return "", fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(buses, query))
	if err != nil {
		return "", fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		builder.WriteString(chunk.Content)
		emit(chunk.Content)
	}

	if strings.TrimSpace(builder.String()) == "" {
		return "", ErrEmptyResponse
	}
	return builder.String(), nil
}

func (s *Service) buildChainInput(buses []bus.Bus, query string) map[string]any {
	return map[string]any{
		"system": s.template.BuildSystemPrompt(buses),
		"query":  query,
	}
}
