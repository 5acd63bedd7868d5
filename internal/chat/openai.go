package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"telecalc/internal/logger"
)

// OpenAIConfig configures OpenAIStreamer. BaseURL points the client at any
// OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAIStreamer is a Streamer backed by the chat completions API.
type OpenAIStreamer struct {
	client    *openai.Client
	model     string
	maxTokens int
	log       zerolog.Logger
}

// NewOpenAIStreamer returns ErrUnavailable when no API key is set.
func NewOpenAIStreamer(cfg OpenAIConfig) (*OpenAIStreamer, error) {
	if cfg.APIKey == "" {
		return nil, ErrUnavailable
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIStreamer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: cfg.MaxTokens,
		log:       logger.WithComponent("chat-openai"),
	}, nil
}

// Stream implements Streamer.
func (s *OpenAIStreamer) Stream(ctx context.Context, messages []Message, onDelta func(string) error) (string, error) {
	const op = "OpenAIStreamer.Stream"

	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   s.maxTokens,
		Temperature: 0.2,
		Stream:      true,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	s.log.Debug().
		Str("model", s.model).
		Int("messages", len(messages)).
		Msg("Opening chat completion stream")

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: open stream: %w", op, err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return reply.String(), nil
		}
		if err != nil {
			return reply.String(), fmt.Errorf("%s: receive: %w", op, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		reply.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return reply.String(), err
		}
	}
}
