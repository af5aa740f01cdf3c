package vibeproxy

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultModelObject = "model"
	defaultModelOwner  = "vibeproxy"
	probePrompt        = `Reply with just the word "OK"`
	probeMaxTokens     = 10
	healthRefusedMsg   = "Connection refused - VibeProxy not running or tunnel down"
	healthTimeoutMsg   = "Connection timeout"
	healthyMsgFormat   = "Healthy (%d models available)"
	probeSuccessFormat = "OK (%s)"
)

// Model is one entry of the backend model list.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

func (m Model) Provider() string    { return ProviderOf(m.ID) }
func (m Model) DisplayName() string { return DisplayName(m.ID) }

// ListModels returns the models VibeProxy advertises. Results are cached for
// the client's model cache TTL.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	if c.cacheTTL > 0 {
		c.mu.Lock()
		if c.models != nil && c.now().Sub(c.modelsAt) < c.cacheTTL {
			out := append([]Model(nil), c.models...)
			c.mu.Unlock()
			return out, nil
		}
		c.mu.Unlock()
	}

	models, err := c.fetchModels(ctx)
	if err != nil {
		return nil, err
	}

	if c.cacheTTL > 0 {
		c.mu.Lock()
		c.models = models
		c.modelsAt = c.now()
		c.mu.Unlock()
	}
	return append([]Model(nil), models...), nil
}

// InvalidateModels drops the cached model list.
func (c *Client) InvalidateModels() {
	c.mu.Lock()
	c.models = nil
	c.modelsAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) fetchModels(ctx context.Context) ([]Model, error) {
	ctx, span := c.tracer.Start(ctx, "vibeproxy.list_models")
	defer span.End()

	list, err := c.api.ListModels(ctx)
	if err != nil {
		cerr := classify(ctx, err)
		span.RecordError(cerr)
		return nil, cerr
	}

	models := make([]Model, 0, len(list.Models))
	for _, m := range list.Models {
		model := Model{ID: m.ID, Object: m.Object, Created: m.CreatedAt, OwnedBy: m.OwnedBy}
		if model.Object == "" {
			model.Object = defaultModelObject
		}
		if model.OwnedBy == "" {
			model.OwnedBy = defaultModelOwner
		}
		models = append(models, model)
	}
	span.SetAttributes(attribute.Int("vibeproxy.models", len(models)))
	return models, nil
}

// HealthStatus summarizes backend reachability.
type HealthStatus struct {
	Healthy    bool   `json:"healthy"`
	ModelCount int    `json:"modelCount"`
	Message    string `json:"message"`
}

// HealthCheck lists models against the live backend. It never returns an
// error; failures are reported through HealthStatus.Message.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	models, err := c.fetchModels(ctx)
	if err != nil {
		c.logger.Warn("vibeproxy: health check failed", "error", err)
		return HealthStatus{Message: healthMessage(err)}
	}

	c.mu.Lock()
	c.models = models
	c.modelsAt = c.now()
	c.mu.Unlock()

	return HealthStatus{
		Healthy:    true,
		ModelCount: len(models),
		Message:    fmt.Sprintf(healthyMsgFormat, len(models)),
	}
}

func healthMessage(err error) string {
	e, ok := AsError(err)
	if !ok {
		return err.Error()
	}
	switch e.Kind {
	case KindConnectionRefused:
		return healthRefusedMsg
	case KindTimeout:
		return healthTimeoutMsg
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error()
}

// ModelProbe is the outcome of TestModel.
type ModelProbe struct {
	Model   string        `json:"model"`
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Latency time.Duration `json:"latency"`
}

// TestModel sends a tiny prompt to model and reports whether it answered.
func (c *Client) TestModel(ctx context.Context, model string) ModelProbe {
	if model == "" {
		model = c.cfg.Model
	}
	probe := ModelProbe{Model: model}

	start := c.now()
	_, err := c.Complete(ctx, []Message{UserMessage(probePrompt)}, Options{
		Model:     model,
		MaxTokens: probeMaxTokens,
	})
	probe.Latency = c.now().Sub(start)
	if err != nil {
		probe.Message = healthMessage(err)
		return probe
	}

	probe.Success = true
	probe.Message = fmt.Sprintf(probeSuccessFormat, probe.Latency.Round(time.Millisecond))
	return probe
}
