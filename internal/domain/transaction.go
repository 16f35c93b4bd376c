package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"transfer-hub/internal/query"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusCanceled   Status = "CANCELED"
)

// transitions lists the legal targets of every non-terminal status.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCanceled},
	StatusProcessing: {StatusSuccess, StatusFailed},
}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusSuccess, StatusFailed, StatusCanceled:
		return st, true
	}
	return "", false
}

func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ActionType is the log entry recorded when a transaction enters s.
func (s Status) ActionType() ActionType {
	switch s {
	case StatusProcessing:
		return ActionTransferProcessing
	case StatusSuccess:
		return ActionTransferSuccess
	case StatusFailed:
		return ActionTransferFailed
	case StatusCanceled:
		return ActionTransferCanceled
	default:
		return ActionTransferCreated
	}
}

type Transaction struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	Reference  string         `json:"reference" db:"reference"`
	Amount     int64          `json:"amount" db:"amount"`
	Fees       int64          `json:"fees" db:"fees"`
	Currency   string         `json:"currency" db:"currency"`
	Status     Status         `json:"status" db:"status"`
	PayeeName  string         `json:"payeeName" db:"payee_name"`
	PayeePhone string         `json:"payeePhone" db:"payee_phone"`
	ChannelID  uuid.UUID      `json:"channelId" db:"channel_id"`
	Channel    *Channel       `json:"channel,omitempty" db:"-"`
	Metadata   map[string]any `json:"metadata,omitempty" db:"-"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time      `json:"updatedAt" db:"updated_at"`
}

// Value exposes the list-filterable fields of a transaction and its channel.
func (t *Transaction) Value(relation, field string) (any, bool) {
	if relation == "channel" {
		if t.Channel == nil {
			return nil, false
		}
		return t.Channel.Value("", field)
	}
	if relation != "" {
		return nil, false
	}

	switch field {
	case "id":
		return t.ID.String(), true
	case "reference":
		return t.Reference, true
	case "amount":
		return t.Amount, true
	case "fees":
		return t.Fees, true
	case "currency":
		return t.Currency, true
	case "status":
		return string(t.Status), true
	case "payeeName":
		return t.PayeeName, true
	case "payeePhone":
		return t.PayeePhone, true
	case "channelId":
		return t.ChannelID.String(), true
	case "createdAt":
		return t.CreatedAt, true
	case "updatedAt":
		return t.UpdatedAt, true
	}
	return nil, false
}

// Snapshot captures the fields an action log entry keeps about t.
func (t *Transaction) Snapshot() TransactionSnapshot {
	snap := TransactionSnapshot{
		Reference:  t.Reference,
		Amount:     t.Amount,
		Fees:       t.Fees,
		Currency:   t.Currency,
		Status:     t.Status,
		PayeeName:  t.PayeeName,
		PayeePhone: t.PayeePhone,
	}
	if t.Channel != nil {
		snap.Channel = ChannelSnapshot{Code: t.Channel.Code, Name: t.Channel.Name}
	}
	return snap
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// UpdateTransactionStatus sets the status unconditionally.
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status Status) (*Transaction, error)
	// CompareAndSetStatus moves the transaction to status only when it is
	// currently in from. It returns ErrTransactionNotFound or ErrInvalidTransition
	// when nothing was updated.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Transaction, error)
	CountTransactions(ctx context.Context, where query.Predicate) (int64, error)
	FindTransactions(ctx context.Context, where query.Predicate, window query.Window) ([]*Transaction, error)
}
