// Package provider holds the payment provider adapters transfers are routed to.
package provider

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"transfer-hub/internal/errors"
)

type Request struct {
	Amount        int64
	Phone         string
	Currency      string
	TransactionID uuid.UUID
}

type Response struct {
	Message           string `json:"message"`
	ProviderReference string `json:"provider_ref"`
}

// Adapter performs the external transfer attempt for one provider. It must
// not change transaction state; failures are returned to the caller.
type Adapter interface {
	Code() string
	Process(ctx context.Context, req Request) (*Response, error)
}

// Registry maps channel codes to adapters.
type Registry struct {
	adapters map[string]Adapter
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger, adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter, len(adapters)),
		logger:   logger,
	}
	for _, a := range adapters {
		r.adapters[a.Code()] = a
	}
	return r
}

// Lookup returns the adapter registered for code or ErrUnsupportedProvider.
func (r *Registry) Lookup(code string) (Adapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		r.logger.Warn("No adapter registered for channel", "channel_code", code)
		return nil, errors.ErrUnsupportedProvider.WithDetails("channel " + code)
	}
	return a, nil
}

func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
