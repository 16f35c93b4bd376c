package provider

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"transfer-hub/internal/errors"
)

// RandomSource draws the outcome of a simulated transfer.
type RandomSource interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// NewRandomSource returns a source safe for concurrent use.
func NewRandomSource() RandomSource {
	return globalSource{}
}

// FixedSource always draws the same value.
type FixedSource float64

func (f FixedSource) Float64() float64 { return float64(f) }

const DefaultSuccessRate = 0.85

type SimulatedConfig struct {
	Latency     time.Duration
	SuccessRate float64
	Random      RandomSource
}

// Simulated stands in for a provider API: it waits for Latency and then
// succeeds with probability SuccessRate.
type Simulated struct {
	code   string
	cfg    SimulatedConfig
	logger *slog.Logger
}

func NewSimulated(code string, cfg SimulatedConfig, logger *slog.Logger) *Simulated {
	if cfg.Random == nil {
		cfg.Random = NewRandomSource()
	}
	if cfg.SuccessRate <= 0 {
		cfg.SuccessRate = DefaultSuccessRate
	}
	return &Simulated{
		code:   code,
		cfg:    cfg,
		logger: logger.With("provider", code),
	}
}

func NewOrangeMoney(cfg SimulatedConfig, logger *slog.Logger) *Simulated {
	return NewSimulated("om", cfg, logger)
}

func NewWave(cfg SimulatedConfig, logger *slog.Logger) *Simulated {
	return NewSimulated("wave", cfg, logger)
}

func (s *Simulated) Code() string {
	return s.code
}

func (s *Simulated) Process(ctx context.Context, req Request) (*Response, error) {
	s.logger.Info("Sending transfer to provider",
		"transaction_id", req.TransactionID,
		"amount", req.Amount,
		"currency", req.Currency)

	if s.cfg.Latency > 0 {
		timer := time.NewTimer(s.cfg.Latency)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			s.logger.Warn("Provider call abandoned", "transaction_id", req.TransactionID, "error", ctx.Err())
			return nil, errors.ErrProviderFailure.WithDetails(ctx.Err().Error())
		}
	}

	if s.cfg.Random.Float64() >= s.cfg.SuccessRate {
		s.logger.Warn("Provider rejected transfer", "transaction_id", req.TransactionID)
		return nil, errors.ErrProviderFailure
	}

	ref := s.code + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	s.logger.Info("Provider accepted transfer", "transaction_id", req.TransactionID, "provider_ref", ref)

	return &Response{
		Message:           "Transaction processed successfully",
		ProviderReference: ref,
	}, nil
}
