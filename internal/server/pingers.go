package server

import (
	"context"
	"fmt"

	"github.com/docschat/docschat-go/internal/provider"
)

// ModelPinger probes the chat model backend by listing its available models.
// This is a zero-token check on every supported backend, unlike a probe that
// issues a Generate call. It satisfies the Pinger interface and is used by
// GET /api/ready.
type ModelPinger struct {
	cfg *provider.Config
}

// NewModelPinger constructs a ModelPinger for the given provider config.
func NewModelPinger(cfg *provider.Config) *ModelPinger {
	return &ModelPinger{cfg: cfg}
}

// Name returns the backend label used in readiness responses.
func (p *ModelPinger) Name() string { return string(p.cfg.Backend) }

// Ping lists the backend's models and fails if the backend is unreachable.
func (p *ModelPinger) Ping(ctx context.Context) error {
	if _, err := provider.ListModels(ctx, p.cfg); err != nil {
		return fmt.Errorf("model listing failed: %w", err)
	}
	return nil
}
