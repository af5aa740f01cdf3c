package vibeproxy

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
)

// FinishReasonStop is reported when the backend omits a finish reason.
const FinishReasonStop = "stop"

const (
	modeSync   = "sync"
	modeStream = "stream"
)

// Options tune a single request. Cancellation travels on the context passed
// alongside, typically one handed out by a Registry.
type Options struct {
	// Model overrides the client default.
	Model string
	// MaxTokens overrides the client default when > 0.
	MaxTokens int
	// Temperature is the requested sampling temperature; see ResolveTemperature.
	Temperature *float32
}

// Usage holds backend token counters.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the outcome of a non-streaming completion.
type Result struct {
	Content      string `json:"content"`
	FinishReason string `json:"finishReason"`
	Usage        *Usage `json:"usage,omitempty"`
	Model        string `json:"model"`
}

func (c *Client) buildRequest(messages []Message, opts Options) openai.ChatCompletionRequest {
	model := opts.Model
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   maxTokens,
		Temperature: wireTemperature(ResolveTemperature(model, opts.Temperature)),
	}
}

// Complete sends messages and waits for the full reply. Failures are returned
// as *Error; a cancelled ctx yields KindCancelled.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (*Result, error) {
	req := c.buildRequest(messages, opts)

	ctx, span := c.tracer.Start(ctx, "vibeproxy.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("vibeproxy.model", req.Model),
		attribute.Int("vibeproxy.messages", len(messages)),
		attribute.Int("vibeproxy.max_tokens", req.MaxTokens),
	)

	start := c.now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		cerr := classify(ctx, err)
		span.RecordError(cerr)
		c.metrics.ObserveRequest(req.Model, modeSync, status(cerr), c.since(start))
		c.logger.Warn("vibeproxy: completion failed",
			"model", req.Model,
			"kind", string(cerr.Kind),
			"error", cerr.Error(),
		)
		return nil, cerr
	}

	result := &Result{
		FinishReason: FinishReasonStop,
		Model:        resp.Model,
	}
	if result.Model == "" {
		result.Model = req.Model
	}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		result.Content = choice.Message.Content
		if choice.FinishReason != "" {
			result.FinishReason = string(choice.FinishReason)
		}
	}
	if u := resp.Usage; u.PromptTokens > 0 || u.CompletionTokens > 0 || u.TotalTokens > 0 {
		result.Usage = &Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
		c.metrics.ObserveTokens(req.Model, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	}

	c.metrics.ObserveRequest(req.Model, modeSync, status(nil), c.since(start))
	span.SetAttributes(
		attribute.String("vibeproxy.finish_reason", result.FinishReason),
		attribute.Int("vibeproxy.content_length", len(result.Content)),
	)
	c.logger.Debug("vibeproxy: completion finished",
		"model", result.Model,
		"finish_reason", result.FinishReason,
	)
	return result, nil
}
