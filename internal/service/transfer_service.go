package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"transfer-hub/internal/domain"
	"transfer-hub/internal/errors"
	"transfer-hub/internal/provider"
)

const DefaultProviderTimeout = 30 * time.Second

// TransferService dispatches PENDING transactions to the adapter registered
// for their channel and records the outcome.
type TransferService struct {
	transactions *TransactionService
	providers    *provider.Registry
	timeout      time.Duration
	logger       *slog.Logger
}

func NewTransferService(
	transactions *TransactionService,
	providers *provider.Registry,
	timeout time.Duration,
	logger *slog.Logger,
) *TransferService {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &TransferService{
		transactions: transactions,
		providers:    providers,
		timeout:      timeout,
		logger:       logger,
	}
}

// Process runs one dispatch of the transaction. Only one caller can move a
// transaction out of PENDING; the others get a conflict. Once PROCESSING is
// committed the transaction always ends in SUCCESS or FAILED, even when ctx
// is canceled while the adapter runs.
func (s *TransferService) Process(ctx context.Context, id uuid.UUID) (*provider.Response, error) {
	s.logger.Info("Processing transfer", "transaction_id", id)

	tx, err := s.transactions.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.StatusPending {
		s.logger.Warn("Transaction is not eligible for processing", "transaction_id", id, "status", tx.Status)
		return nil, errors.ErrInvalidTransition.WithDetails("transaction is " + string(tx.Status))
	}

	// Resolved before the transition so an unroutable channel leaves the
	// transaction PENDING.
	var channelCode string
	if tx.Channel != nil {
		channelCode = tx.Channel.Code
	}
	adapter, err := s.providers.Lookup(channelCode)
	if err != nil {
		s.logger.Warn("No adapter for channel", "transaction_id", id, "channel_code", channelCode)
		return nil, err
	}

	tx, err = s.transactions.Transition(ctx, id, domain.StatusPending, domain.StatusProcessing)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, callErr := adapter.Process(callCtx, provider.Request{
		Amount:        tx.Amount,
		Phone:         tx.PayeePhone,
		Currency:      tx.Currency,
		TransactionID: tx.ID,
	})

	reconcileCtx := context.WithoutCancel(ctx)
	if callErr != nil {
		appErr := errors.As(callErr)
		if appErr.Code != errors.ProviderFailure {
			appErr = errors.ErrProviderFailure.WithDetails(callErr.Error())
		}
		s.logger.Warn("Provider rejected transfer",
			"transaction_id", id,
			"channel_code", channelCode,
			"error", callErr)

		if _, err := s.transactions.Transition(reconcileCtx, id, domain.StatusProcessing, domain.StatusFailed); err != nil {
			s.logger.Error("Failed to record failed transfer", "transaction_id", id, "error", err)
			return nil, err
		}
		return nil, appErr
	}

	if _, err := s.transactions.Transition(reconcileCtx, id, domain.StatusProcessing, domain.StatusSuccess); err != nil {
		s.logger.Error("Failed to record successful transfer", "transaction_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("Transfer completed successfully",
		"transaction_id", id,
		"provider_ref", resp.ProviderReference)
	return resp, nil
}
