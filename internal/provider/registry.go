package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/tempmail/internal/logging"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/transport"
)

// Registry is the ordered set of backends. Order defines preference and
// failover order for random mailbox creation.
type Registry struct {
	backends []Backend
	byID     map[string]Backend
}

// NewRegistry creates a registry from backends in preference order.
func NewRegistry(backends ...Backend) (*Registry, error) {
	r := &Registry{byID: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		id := b.Descriptor().ID
		if id == "" {
			return nil, fmt.Errorf("registering provider: empty id")
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("registering provider %q: duplicate id", id)
		}
		r.backends = append(r.backends, b)
		r.byID[id] = b
	}
	return r, nil
}

// Build creates a registry from configuration. Each backend gets its own
// transport chain: direct, its own relay list, or the global relays.
func Build(cfg *model.AppConfig, logger *zap.Logger) (*Registry, error) {
	logger = logging.OrNop(logger)
	backends := make([]Backend, 0, len(cfg.Providers))
	for _, desc := range cfg.Providers {
		proxies := cfg.Proxies
		switch {
		case desc.Direct:
			proxies = nil
		case len(desc.Proxies) > 0:
			proxies = desc.Proxies
		}

		chain := transport.New(proxies,
			transport.WithTimeout(cfg.Poll.RequestTimeout()),
			transport.WithLogger(logger.With(zap.String("provider", desc.ID))),
		)
		b, err := New(desc, chain)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	return NewRegistry(backends...)
}

// Ordered returns the backends in preference order.
func (r *Registry) Ordered() []Backend {
	return append([]Backend(nil), r.backends...)
}

// IDs returns provider ids in preference order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.backends))
	for i, b := range r.backends {
		ids[i] = b.Descriptor().ID
	}
	return ids
}

// Get returns the backend for id.
func (r *Registry) Get(id string) (Backend, error) {
	b, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return b, nil
}

// Descriptor returns the static configuration for id.
func (r *Registry) Descriptor(id string) (model.ProviderDescriptor, error) {
	b, err := r.Get(id)
	if err != nil {
		return model.ProviderDescriptor{}, err
	}
	return b.Descriptor(), nil
}

// ListMessages routes to the mailbox's provider.
func (r *Registry) ListMessages(
	ctx context.Context,
	mb model.Mailbox,
) ([]model.EmailSummary, error) {
	b, err := r.Get(mb.ProviderID)
	if err != nil {
		return nil, err
	}
	return b.ListMessages(ctx, mb)
}

// GetMessage routes to the mailbox's provider.
func (r *Registry) GetMessage(
	ctx context.Context,
	mb model.Mailbox,
	id string,
) (*model.EmailDetail, error) {
	b, err := r.Get(mb.ProviderID)
	if err != nil {
		return nil, err
	}
	return b.GetMessage(ctx, mb, id)
}

// DeleteMessage routes to the mailbox's provider.
func (r *Registry) DeleteMessage(ctx context.Context, mb model.Mailbox, id string) error {
	b, err := r.Get(mb.ProviderID)
	if err != nil {
		return err
	}
	return b.DeleteMessage(ctx, mb, id)
}
