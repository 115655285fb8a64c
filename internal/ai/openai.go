package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentforge/internal/config"
	"agentforge/internal/logging"
	"agentforge/internal/metrics"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OpenAIClient implements Completer over an OpenAI-compatible chat API.
// Calls carry no client timeout; they block until the service answers or
// ctx is cancelled.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
}

// NewOpenAIClient creates a client from generation config
func NewOpenAIClient(cfg config.GenerationConfig) (*OpenAIClient, error) {
	apiKey := normalizeAPIKey(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     limiter,
	}, nil
}

// Complete implements Completer
func (o *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("generation rate limit: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: o.temperature,
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)
	if err != nil {
		metrics.Get().RecordGeneration(o.model, false, duration, 0, 0)
		logging.L().Error("chat completion failed", zap.String("model", o.model), zap.Error(err))
		return "", fmt.Errorf("chat completion: %w", err)
	}

	metrics.Get().RecordGeneration(o.model, true, duration, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	logging.L().Debug("chat completion received",
		zap.String("model", o.model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", duration),
	)
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	return out
}

// normalizeAPIKey strips formatting noise that commonly appears in env-var values.
func normalizeAPIKey(raw string) string {
	key := strings.Trim(strings.TrimSpace(raw), `"'`)
	if len(key) >= len("bearer ") && strings.EqualFold(key[:len("bearer ")], "bearer ") {
		key = key[len("bearer "):]
	}

	// Keep only visible ASCII bytes to avoid malformed Authorization headers.
	key = strings.NewReplacer(`\r`, "", `\n`, "").Replace(key)
	filtered := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		if b := key[i]; b >= 33 && b <= 126 {
			filtered = append(filtered, b)
		}
	}
	return string(filtered)
}
