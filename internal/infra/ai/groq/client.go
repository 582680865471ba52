package groq

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"

	domain "github.com/lintora/lintora/internal/domain/audits"
	"github.com/lintora/lintora/internal/infra/ai/prompt"
)

// Groq exposes an OpenAI-compatible chat-completions API, so the adapter is
// the stock go-openai client pointed at the Groq base URL.

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Reviewer adalah AI producer. Findings are tagged source="ai" so reports can
// distinguish probabilistic output from the deterministic engines.
type Reviewer struct {
	client     completer
	apiKey     string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
	backoff    time.Duration
}

func NewReviewer(apiKey, baseURL, model string, maxTokens, timeoutSeconds, maxRetries int) *Reviewer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Reviewer{
		client:     openai.NewClientWithConfig(cfg),
		apiKey:     apiKey,
		Model:      model,
		MaxTokens:  maxTokens,
		Timeout:    time.Duration(timeoutSeconds) * time.Second,
		MaxRetries: maxRetries,
		backoff:    2 * time.Second,
	}
}

func (r *Reviewer) Name() string { return "groq_ai" }

// Available: no API key, no AI reviewer. The producer is then excluded from
// analyzers_used instead of silently contributing nothing.
func (r *Reviewer) Available() bool { return r.apiKey != "" }

// Analyze implements domain.Producer. Reviews each Solidity file with its own
// request timeout and a bounded retry on transient failure.
func (r *Reviewer) Analyze(ctx context.Context, ws *domain.Workspace) ([]domain.Finding, error) {
	var findings []domain.Finding
	for _, f := range ws.Files {
		fs, err := r.reviewFile(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("ai review %s: %w", f.Rel, err)
		}
		findings = append(findings, fs...)
	}
	log.Printf("groq_ai: %d findings from %d files", len(findings), len(ws.Files))
	return findings, nil
}

func (r *Reviewer) reviewFile(ctx context.Context, f domain.SourceFile) ([]domain.Finding, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.Model,
		MaxTokens:   r.MaxTokens,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(f.Rel, f.Content)},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff << (attempt - 1)):
			}
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if r.Timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		}
		resp, err := r.client.CreateChatCompletion(reqCtx, req)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if len(resp.Choices) == 0 {
			return nil, nil
		}
		return prompt.ParseFindings(f.Rel, resp.Choices[0].Message.Content)
	}
	return nil, fmt.Errorf("after %d attempts: %w", r.MaxRetries+1, lastErr)
}
