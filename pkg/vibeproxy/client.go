package vibeproxy

import (
	"context"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/vibeproxy/vibeproxy-go/internal/observability/metrics"
	"github.com/vibeproxy/vibeproxy-go/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultModelCacheTTL = 30 * time.Second

var clientTracer = otel.Tracer("vibeproxy.pkg.vibeproxy")

// backend is the slice of the go-openai client this package uses.
type backend interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

var _ backend = (*openai.Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request outcomes on m.
func WithMetrics(m *metrics.CompletionMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer overrides the package tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithHTTPClient replaces the HTTP client handed to go-openai. Config.Timeout
// is not applied to a caller-supplied client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModelCacheTTL sets how long ListModels results are reused. A value <= 0
// disables the cache.
func WithModelCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

// Client forwards completion requests to VibeProxy. It is safe for
// concurrent use and holds no per-request state.
type Client struct {
	cfg        Config
	api        backend
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.CompletionMetrics
	tracer     trace.Tracer
	cacheTTL   time.Duration
	now        func() time.Time

	mu       sync.Mutex
	models   []Model
	modelsAt time.Time
}

// New resolves cfg (see Config.Resolve) and builds a go-openai client pointed
// at VibeProxy.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg.Resolve(),
		logger:   logging.Default(),
		tracer:   clientTracer,
		cacheTTL: defaultModelCacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.cfg.Timeout}
	}
	apiCfg := openai.DefaultConfig(c.cfg.APIKey)
	apiCfg.BaseURL = c.cfg.BaseURL
	apiCfg.HTTPClient = c.httpClient
	c.api = openai.NewClientWithConfig(apiCfg)

	return c
}

// Config returns the resolved configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// DefaultModel returns the model used when Options.Model is empty.
func (c *Client) DefaultModel() string {
	return c.cfg.Model
}

func (c *Client) since(start time.Time) float64 {
	return c.now().Sub(start).Seconds()
}
