package completion

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	openai "slack-mock/internal/infra/openai"
)

type streamClient interface {
	StreamChatCompletion(ctx context.Context, req openai.ChatCompletionRequest, onDelta func(string)) error
}

// OpenAI стримит ответы ассистента через OpenAI Chat Completions.
type OpenAI struct {
	client  streamClient
	model   string
	system  string
	limiter *rate.Limiter
}

// NewOpenAI создаёт провайдер. limiter может быть nil.
func NewOpenAI(client streamClient, model, system string, limiter *rate.Limiter) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{client: client, model: model, system: system, limiter: limiter}
}

// Stream отправляет prompt и передаёт фрагменты ответа по мере прихода.
func (o *OpenAI) Stream(ctx context.Context, prompt string, onFragment func(string)) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("openai stream: пустой запрос")
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("openai stream: ожидание лимита: %w", err)
		}
	}
	req := openai.ChatCompletionRequest{
		Model:         o.model,
		Temperature:   0.6,
		MaxTokens:     600,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: o.system},
			{Role: openai.RoleUser, Content: clipRunes(prompt, 4000)},
		},
	}
	if err := o.client.StreamChatCompletion(ctx, req, onFragment); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}
	return nil
}
