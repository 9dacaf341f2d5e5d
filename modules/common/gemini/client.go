package gemini

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Session - a model endpoint bound to one region. It serves every retry attempt
// in that region; sessions that also implement io.Closer are closed once the region is done.
type Session interface {
	Generate(ctx context.Context, call *Call) (string, error)
}

// Dialer - opens a Session for a named region
type Dialer interface {
	Dial(ctx context.Context, region string) (Session, error)
}

// Options - RegionClient settings; zero fields take the defaults
type Options struct {
	Model    string
	Regions  []string
	Retry    *RetryPolicy
	Defaults *GenerationConfig
	Logger   *slog.Logger
}

// RegionClient - calls the remote model with per-call retry nested inside region fallback.
// It holds no mutable state, so one instance serves concurrent requests.
type RegionClient struct {
	dialer   Dialer
	model    string
	retry    RetryPolicy
	fallback FallbackPolicy
	defaults GenerationConfig
	logger   *slog.Logger
}

// NewRegionClient - builds a client over dialer
func NewRegionClient(dialer Dialer, opts Options) (*RegionClient, error) {
	if dialer == nil {
		return nil, fmt.Errorf("dialer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	regions := opts.Regions
	if len(regions) == 0 {
		regions = DefaultRegions
	}
	regions = append([]string(nil), regions...)

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	retry := DefaultRetryPolicy()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	defaults := DefaultGenerationConfig()
	if opts.Defaults != nil {
		defaults = *opts.Defaults
	}

	return &RegionClient{
		dialer:   dialer,
		model:    model,
		retry:    retry,
		fallback: FallbackPolicy{Regions: regions, Logger: logger},
		defaults: defaults,
		logger:   logger,
	}, nil
}

// Regions - the fallback order, highest priority first
func (c *RegionClient) Regions() []string {
	return append([]string(nil), c.fallback.Regions...)
}

// Generate - returns the text of the first region that answers successfully
func (c *RegionClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	if err := req.Prompt.validate(); err != nil {
		return "", err
	}

	config := c.defaults.merge(req.Config)
	if req.Schema != nil {
		config.ResponseMIMEType = MIMETypeJSON
	}

	return c.fallback.Run(ctx, func(ctx context.Context, region string) (string, error) {
		session, err := c.dialer.Dial(ctx, region)
		if err != nil {
			return "", fmt.Errorf("dial: %w", err)
		}
		if closer, ok := session.(io.Closer); ok {
			defer func() {
				if err := closer.Close(); err != nil {
					c.logger.Debug("⚠️  [Gemini] Session close failed", "region", region, "error", err)
				}
			}()
		}

		call := &Call{
			Model:  c.model,
			Region: region,
			Prompt: req.Prompt,
			Config: config,
			Schema: req.Schema,
			Safety: SafetySettings(),
		}

		start := time.Now()
		text, err := c.retry.Do(ctx, func(ctx context.Context) (string, error) {
			return session.Generate(ctx, call)
		}, func(attempt int, err error, wait time.Duration) {
			c.logger.Info("🔄 [Gemini Retry] Attempt failed, retrying",
				"region", region, "attempt", attempt, "max_attempts", c.retry.MaxAttempts, "wait", wait, "error", err)
		})
		if err != nil {
			return "", err
		}

		c.logger.Debug("✅ [Gemini] Generation succeeded", "region", region, "model", c.model, "elapsed", time.Since(start))
		return text, nil
	})
}
