package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"slack-mock/internal/infra/metrics"
)

// Gemini стримит ответы ассистента через Google GenAI.
type Gemini struct {
	client  *genai.Client
	model   string
	system  string
	limiter *rate.Limiter
}

// NewGemini создаёт клиента GenAI по ключу API.
func NewGemini(ctx context.Context, apiKey, model, system string, limiter *rate.Limiter) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{client: client, model: model, system: system, limiter: limiter}, nil
}

// Stream отправляет prompt и передаёт текст каждого чанка ответа.
func (g *Gemini) Stream(ctx context.Context, prompt string, onFragment func(string)) (err error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("gemini stream: пустой запрос")
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("gemini stream: ожидание лимита: %w", err)
		}
	}

	start := time.Now()
	defer func() {
		metrics.ObserveNetworkRequest("gemini", "generate_content_stream", g.model, start, err)
	}()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.system, genai.RoleUser),
	}
	var usage tokenUsage
	for resp, streamErr := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(clipRunes(prompt, 4000)), cfg) {
		if streamErr != nil {
			return fmt.Errorf("gemini stream: %w", streamErr)
		}
		if text := fragmentOf(resp); text != "" {
			onFragment(text)
		}
		if u, ok := usageOf(resp); ok {
			usage = u
		}
	}
	metrics.ObserveLLMGeneration(g.model, time.Since(start), usage.prompt, usage.output, usage.total)
	return nil
}

type tokenUsage struct {
	prompt, output, total int
}

// usageOf читает счётчики токенов чанка. Итог без TotalTokenCount считается как сумма.
func usageOf(resp *genai.GenerateContentResponse) (tokenUsage, bool) {
	if resp == nil || resp.UsageMetadata == nil {
		return tokenUsage{}, false
	}
	m := resp.UsageMetadata
	u := tokenUsage{
		prompt: int(m.PromptTokenCount),
		output: int(m.CandidatesTokenCount),
		total:  int(m.TotalTokenCount),
	}
	if u.total == 0 {
		u.total = u.prompt + u.output + int(m.ThoughtsTokenCount)
	}
	return u, true
}

// fragmentOf склеивает текстовые части первого кандидата.
func fragmentOf(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
