package llm

import (
	"context"
	"log/slog"
)

// FallbackClient wraps a primary client with a secondary provider.
// If the primary fails, it automatically retries with the fallback.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *slog.Logger
}

// NewFallbackClient creates a fallback-enabled client.
// If fallback is nil, only the primary provider is used.
func NewFallbackClient(primary, fallback Client, logger *slog.Logger) *FallbackClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// WithModel pins every request sent through client to a fixed model ID.
// Useful for building a fallback that targets a cheaper or more available
// model on the same provider.
func WithModel(client Client, model string) Client {
	return &pinnedModelClient{client: client, model: model}
}

type pinnedModelClient struct {
	client Client
	model  string
}

func (c *pinnedModelClient) Complete(ctx context.Context, req Request) (Response, error) {
	req.Model = c.model
	return c.client.Complete(ctx, req)
}

// Complete sends a completion request to the primary provider, retrying once
// against the fallback when the primary fails.
func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)

	if c.fallback == nil {
		return Response{}, err
	}

	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return Response{}, fallbackErr
	}

	c.logger.Info("fallback LLM succeeded after primary failure")
	return fallbackResp, nil
}
