package service

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"transfer-hub/internal/domain"
	"transfer-hub/internal/errors"
	"transfer-hub/internal/fee"
	"transfer-hub/internal/provider"
	"transfer-hub/internal/query"
	"transfer-hub/internal/reference"
	"transfer-hub/internal/repository/memory"
)

// stubAdapter counts dispatches and optionally blocks until released.
type stubAdapter struct {
	code    string
	err     error
	release chan struct{}
	calls   atomic.Int32
}

func (a *stubAdapter) Code() string { return a.code }

func (a *stubAdapter) Process(ctx context.Context, req provider.Request) (*provider.Response, error) {
	a.calls.Add(1)
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return &provider.Response{Message: "Transaction processed successfully", ProviderReference: a.code + "_0123456789abcdef"}, nil
}

// sequence hands out fixed references, then falls back to random ones.
type sequence struct {
	refs []string
	next *reference.Generator
}

func (s *sequence) Generate() (string, error) {
	if len(s.refs) > 0 {
		ref := s.refs[0]
		s.refs = s.refs[1:]
		return ref, nil
	}
	return s.next.Generate()
}

type ServiceTestSuite struct {
	suite.Suite
	ctx          context.Context
	logger       *slog.Logger
	store        *memory.Store
	refs         *sequence
	actions      *ActionService
	transactions *TransactionService
	wave         *stubAdapter
	transfers    *TransferService
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = memory.NewStore(s.logger)
	s.refs = &sequence{next: reference.New(reference.DefaultPrefix)}

	paginator := query.NewPaginator(query.DefaultLimit, query.MaxLimit)
	s.actions = NewActionService(s.store, paginator, s.logger)
	s.transactions = NewTransactionService(s.store, s.actions, TransactionServiceConfig{
		Fees:       fee.DefaultPolicy(),
		References: s.refs,
		Paginator:  paginator,
	}, s.logger)

	s.wave = &stubAdapter{code: "wave"}
	s.transfers = s.newTransfers(time.Second, s.wave)
}

func (s *ServiceTestSuite) newTransfers(timeout time.Duration, adapters ...provider.Adapter) *TransferService {
	return NewTransferService(s.transactions, provider.NewRegistry(s.logger, adapters...), timeout, s.logger)
}

func (s *ServiceTestSuite) create(amount int64, channel string) *domain.Transaction {
	tx, err := s.transactions.Create(s.ctx, &CreateTransactionRequest{
		Amount:      amount,
		ChannelCode: channel,
		PayeeName:   "Moussa Ndiaye",
		PayeePhone:  "+221771234567",
	})
	s.Require().NoError(err)
	return tx
}

func (s *ServiceTestSuite) actionTypes(id uuid.UUID) []domain.ActionType {
	entries, err := s.actions.ForTransaction(s.ctx, id)
	s.Require().NoError(err)
	types := make([]domain.ActionType, 0, len(entries))
	for _, e := range entries {
		types = append(types, e.Type)
	}
	return types
}

func (s *ServiceTestSuite) status(id uuid.UUID) domain.Status {
	tx, err := s.transactions.FindOne(s.ctx, id)
	s.Require().NoError(err)
	return tx.Status
}

func (s *ServiceTestSuite) TestCreateAppliesFees() {
	tx := s.create(1000, "wave")

	s.Equal(int64(1100), tx.Amount)
	s.Equal(int64(100), tx.Fees)
	s.Equal(DefaultCurrency, tx.Currency)
	s.Equal(domain.StatusPending, tx.Status)
	s.Regexp(`^DEXC_TX_[A-Z0-9]{16}$`, tx.Reference)
	s.Equal("wave", tx.Channel.Code)
	s.Equal([]domain.ActionType{domain.ActionTransferCreated}, s.actionTypes(tx.ID))

	entries, err := s.actions.ForTransaction(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.Equal(int64(1100), entries[0].Snapshot.Amount)
	s.Equal("Wave", entries[0].Snapshot.Channel.Name)
}

func (s *ServiceTestSuite) TestCreateRejectsUnknownChannel() {
	_, err := s.transactions.Create(s.ctx, &CreateTransactionRequest{Amount: 1000, ChannelCode: "mtn"})
	s.ErrorIs(err, errors.ErrChannelNotFound)

	page, err := s.transactions.FindAll(s.ctx, query.Values{})
	s.Require().NoError(err)
	s.Zero(page.Pagination.Total)
}

func (s *ServiceTestSuite) TestCreateRejectsInvalidAmount() {
	_, err := s.transactions.Create(s.ctx, &CreateTransactionRequest{Amount: 0, ChannelCode: "wave"})
	s.ErrorIs(err, errors.ErrInvalidAmount)

	_, err = s.transactions.Create(s.ctx, &CreateTransactionRequest{
		Amount:      math.MaxInt64 - 100,
		ChannelCode: "wave",
		PayeeName:   "Awa",
		PayeePhone:  "+221770000000",
	})
	s.ErrorIs(err, errors.ErrInvalidAmount)

	page, err := s.transactions.FindAll(s.ctx, query.Values{})
	s.Require().NoError(err)
	s.Zero(page.Pagination.Total)
}

func (s *ServiceTestSuite) TestCreateRetriesReferenceCollision() {
	first := s.create(1000, "wave")

	s.refs.refs = []string{first.Reference, "DEXC_TX_00000000000000AB"}
	tx := s.create(2000, "om")
	s.Equal("DEXC_TX_00000000000000AB", tx.Reference)

	s.refs.refs = []string{first.Reference, first.Reference, first.Reference}
	_, err := s.transactions.Create(s.ctx, &CreateTransactionRequest{Amount: 1000, ChannelCode: "wave"})
	s.ErrorIs(err, errors.ErrDuplicateReference)

	page, err := s.transactions.FindAll(s.ctx, query.Values{})
	s.Require().NoError(err)
	s.EqualValues(2, page.Pagination.Total)
}

func (s *ServiceTestSuite) TestCancel() {
	tx := s.create(1000, "wave")

	canceled, err := s.transactions.Cancel(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusCanceled, canceled.Status)

	_, err = s.transactions.Cancel(s.ctx, tx.ID)
	s.ErrorIs(err, errors.ErrInvalidTransition)

	_, err = s.transactions.Cancel(s.ctx, uuid.New())
	s.ErrorIs(err, errors.ErrTransactionNotFound)

	s.Equal([]domain.ActionType{domain.ActionTransferCreated, domain.ActionTransferCanceled}, s.actionTypes(tx.ID))
}

func (s *ServiceTestSuite) TestTransitionRejectsIllegalPairs() {
	tx := s.create(1000, "wave")

	_, err := s.transactions.Transition(s.ctx, tx.ID, domain.StatusPending, domain.StatusProcessing)
	s.Require().NoError(err)

	_, err = s.transactions.Cancel(s.ctx, tx.ID)
	s.ErrorIs(err, errors.ErrInvalidTransition)

	_, err = s.transactions.Transition(s.ctx, tx.ID, domain.StatusProcessing, domain.StatusCanceled)
	s.ErrorIs(err, errors.ErrInvalidTransition)

	_, err = s.transactions.Transition(s.ctx, tx.ID, domain.StatusProcessing, domain.StatusSuccess)
	s.Require().NoError(err)

	for _, target := range []domain.Status{domain.StatusPending, domain.StatusProcessing, domain.StatusFailed, domain.StatusCanceled} {
		_, err = s.transactions.Transition(s.ctx, tx.ID, domain.StatusSuccess, target)
		s.ErrorIs(err, errors.ErrInvalidTransition, "SUCCESS -> %s", target)
	}
	s.Equal(domain.StatusSuccess, s.status(tx.ID))
}

func (s *ServiceTestSuite) TestUpdateStatusIsUnconditional() {
	tx := s.create(1000, "wave")

	updated, err := s.transactions.UpdateStatus(s.ctx, tx.ID, domain.StatusFailed)
	s.Require().NoError(err)
	s.Equal(domain.StatusFailed, updated.Status)
	s.Equal([]domain.ActionType{domain.ActionTransferCreated, domain.ActionTransferFailed}, s.actionTypes(tx.ID))

	_, err = s.transactions.UpdateStatus(s.ctx, uuid.New(), domain.StatusFailed)
	s.ErrorIs(err, errors.ErrTransactionNotFound)
}

func (s *ServiceTestSuite) TestFindOneNotFound() {
	_, err := s.transactions.FindOne(s.ctx, uuid.New())
	s.ErrorIs(err, errors.ErrTransactionNotFound)
}

func (s *ServiceTestSuite) TestProcessSuccess() {
	tx := s.create(1000, "wave")

	resp, err := s.transfers.Process(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.Equal("wave_0123456789abcdef", resp.ProviderReference)
	s.Equal(domain.StatusSuccess, s.status(tx.ID))
	s.Equal([]domain.ActionType{
		domain.ActionTransferCreated,
		domain.ActionTransferProcessing,
		domain.ActionTransferSuccess,
	}, s.actionTypes(tx.ID))
}

func (s *ServiceTestSuite) TestProcessFailureCommitsFailed() {
	s.wave.err = errors.ErrProviderFailure
	tx := s.create(1000, "wave")

	_, err := s.transfers.Process(s.ctx, tx.ID)
	s.ErrorIs(err, errors.ErrProviderFailure)
	s.Equal(domain.StatusFailed, s.status(tx.ID))
	s.Equal([]domain.ActionType{
		domain.ActionTransferCreated,
		domain.ActionTransferProcessing,
		domain.ActionTransferFailed,
	}, s.actionTypes(tx.ID))

	_, err = s.transfers.Process(s.ctx, tx.ID)
	s.ErrorIs(err, errors.ErrInvalidTransition)
	s.EqualValues(1, s.wave.calls.Load())
}

func (s *ServiceTestSuite) TestProcessTimeoutCommitsFailed() {
	slow := &stubAdapter{code: "wave", release: make(chan struct{})}
	transfers := s.newTransfers(20*time.Millisecond, slow)
	tx := s.create(1000, "wave")

	_, err := transfers.Process(s.ctx, tx.ID)
	s.ErrorIs(err, errors.ErrProviderFailure)
	s.Equal(domain.StatusFailed, s.status(tx.ID))
}

func (s *ServiceTestSuite) TestProcessCallerCancellationStillReconciles() {
	slow := &stubAdapter{code: "wave", release: make(chan struct{})}
	transfers := s.newTransfers(time.Minute, slow)
	tx := s.create(1000, "wave")

	ctx, cancel := context.WithCancel(s.ctx)
	go func() {
		for slow.calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := transfers.Process(ctx, tx.ID)
	s.ErrorIs(err, errors.ErrProviderFailure)
	s.Equal(domain.StatusFailed, s.status(tx.ID))
}

func (s *ServiceTestSuite) TestProcessUnsupportedProviderLeavesPending() {
	tx := s.create(1000, "om")

	_, err := s.transfers.Process(s.ctx, tx.ID)
	s.ErrorIs(err, errors.ErrUnsupportedProvider)
	s.Equal(domain.StatusPending, s.status(tx.ID))
	s.Equal([]domain.ActionType{domain.ActionTransferCreated}, s.actionTypes(tx.ID))
}

func (s *ServiceTestSuite) TestProcessRejectsIneligible() {
	tx := s.create(1000, "wave")
	_, err := s.transactions.Cancel(s.ctx, tx.ID)
	s.Require().NoError(err)

	_, err = s.transfers.Process(s.ctx, tx.ID)
	s.ErrorIs(err, errors.ErrInvalidTransition)

	_, err = s.transfers.Process(s.ctx, uuid.New())
	s.ErrorIs(err, errors.ErrTransactionNotFound)
	s.Zero(s.wave.calls.Load())
}

func (s *ServiceTestSuite) TestConcurrentProcessDispatchesOnce() {
	gated := &stubAdapter{code: "wave", release: make(chan struct{})}
	transfers := s.newTransfers(5*time.Second, gated)
	tx := s.create(1000, "wave")

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := make(chan struct{})
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := transfers.Process(s.ctx, tx.ID)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	close(start)

	// Let the losers fail before the winner's adapter call returns.
	time.Sleep(50 * time.Millisecond)
	close(gated.release)
	wg.Wait()

	var succeeded, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.As(err).Code == errors.Conflict:
			conflicts++
		}
	}

	s.EqualValues(1, gated.calls.Load())
	s.Equal(1, succeeded)
	s.Equal(callers-1, conflicts)
	s.Equal(domain.StatusSuccess, s.status(tx.ID))
	s.Equal([]domain.ActionType{
		domain.ActionTransferCreated,
		domain.ActionTransferProcessing,
		domain.ActionTransferSuccess,
	}, s.actionTypes(tx.ID))
}

func (s *ServiceTestSuite) TestFindAllFilters() {
	s.create(1000, "wave")  // total 1100
	s.create(50000, "wave") // total 50400
	s.create(300000, "om")  // total 301500
	pending := s.create(2000, "om")
	_, err := s.transactions.Cancel(s.ctx, pending.ID)
	s.Require().NoError(err)

	page, err := s.transactions.FindAll(s.ctx, query.Values{"status": "PENDING", "minAmount": "1000"})
	s.Require().NoError(err)
	s.EqualValues(3, page.Pagination.Total)

	page, err = s.transactions.FindAll(s.ctx, query.Values{"channel": "om"})
	s.Require().NoError(err)
	s.EqualValues(2, page.Pagination.Total)

	page, err = s.transactions.FindAll(s.ctx, query.Values{"minAmount": "2000", "maxAmount": "60000", "sortBy": "amount", "sortOrder": "desc"})
	s.Require().NoError(err)
	s.Require().Len(page.Data, 2)
	s.Equal(int64(50400), page.Data[0].Amount)

	page, err = s.transactions.FindAll(s.ctx, query.Values{"q": "orange"})
	s.Require().NoError(err)
	s.EqualValues(2, page.Pagination.Total)

	page, err = s.transactions.FindAll(s.ctx, query.Values{"limit": "2", "page": "2"})
	s.Require().NoError(err)
	s.Equal(query.Pagination{Page: 2, Limit: 2, Total: 4, TotalPages: 2}, page.Pagination)

	_, err = s.transactions.FindAll(s.ctx, query.Values{"status": "DONE"})
	s.Equal(errors.ValidationError, errors.As(err).Code)

	_, err = s.transactions.FindAll(s.ctx, query.Values{"minAmount": "lots"})
	s.Equal(errors.ValidationError, errors.As(err).Code)

	_, err = s.transactions.FindAll(s.ctx, query.Values{"sortBy": "password"})
	s.Equal(errors.ValidationError, errors.As(err).Code)
}

func (s *ServiceTestSuite) TestFindAllRejectsUnaddressablePage() {
	s.create(1000, "wave")

	s.NotPanics(func() {
		_, err := s.transactions.FindAll(s.ctx, query.Values{"page": "922337203685477582"})
		s.Equal(errors.ValidationError, errors.As(err).Code)
	})

	page, err := s.transactions.FindAll(s.ctx, query.Values{"page": "922337203685477580"})
	s.Require().NoError(err)
	s.Empty(page.Data)
	s.EqualValues(1, page.Pagination.Total)
}

func (s *ServiceTestSuite) TestActionFindAll() {
	a := s.create(1000, "wave")
	b := s.create(1000, "wave")
	_, err := s.transactions.Cancel(s.ctx, b.ID)
	s.Require().NoError(err)

	page, err := s.actions.FindAll(s.ctx, query.Values{"type": string(domain.ActionTransferCreated)})
	s.Require().NoError(err)
	s.EqualValues(2, page.Pagination.Total)

	page, err = s.actions.FindAll(s.ctx, query.Values{"transactionId": b.ID.String()})
	s.Require().NoError(err)
	s.EqualValues(2, page.Pagination.Total)

	page, err = s.actions.FindAll(s.ctx, query.Values{"q": a.ID.String()[:8]})
	s.Require().NoError(err)
	s.EqualValues(1, page.Pagination.Total)
	s.Equal(a.ID, page.Data[0].TransactionID)

	_, err = s.actions.FindAll(s.ctx, query.Values{"type": "TRANSFER_LOST"})
	s.Equal(errors.ValidationError, errors.As(err).Code)

	_, err = s.actions.ForTransaction(s.ctx, uuid.New())
	s.ErrorIs(err, errors.ErrTransactionNotFound)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}
