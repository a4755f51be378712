// Package provider implements the completion provider on the OpenAI API.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/JuneJin9655/ai-chat/internal/chat"
)

// DefaultTimeout bounds a single completion call. Timeouts surface as
// ordinary provider errors, which the orchestrator wraps as upstream
// failures.
const DefaultTimeout = 60 * time.Second

// Config configures the OpenAI client.
type Config struct {
	APIKey  string
	Model   string        // e.g. "gpt-4o-mini"
	BaseURL string        // optional, for OpenAI-compatible endpoints
	Timeout time.Duration // zero uses DefaultTimeout
	Logger  *slog.Logger
}

// OpenAI implements chat.Provider by calling the OpenAI chat completion API.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an OpenAI provider from cfg.
func New(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(config),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

// Complete returns the full assistant reply for the given window.
func (o *OpenAI) Complete(ctx context.Context, messages []chat.ProviderMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAI(messages),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from model")
	}

	o.logger.Debug("completion finished",
		"model", o.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// Stream returns the assistant reply as a sequence of content fragments.
// The upstream connection is closed when the consumer stops iterating, so
// an abandoned sequence does not leak the call.
func (o *OpenAI) Stream(ctx context.Context, messages []chat.ProviderMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    o.model,
			Messages: toOpenAI(messages),
			Stream:   true,
		})
		if err != nil {
			yield("", fmt.Errorf("opening completion stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("reading completion stream: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
	}
}

func toOpenAI(messages []chat.ProviderMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return out
}
