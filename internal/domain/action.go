package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"transfer-hub/internal/query"
)

type ActionType string

const (
	ActionTransferCreated    ActionType = "TRANSFER_CREATED"
	ActionTransferProcessing ActionType = "TRANSFER_PROCESSING"
	ActionTransferSuccess    ActionType = "TRANSFER_SUCCESS"
	ActionTransferFailed     ActionType = "TRANSFER_FAILED"
	ActionTransferCanceled   ActionType = "TRANSFER_CANCELED"
)

func ParseActionType(s string) (ActionType, bool) {
	switch at := ActionType(s); at {
	case ActionTransferCreated, ActionTransferProcessing, ActionTransferSuccess,
		ActionTransferFailed, ActionTransferCanceled:
		return at, true
	}
	return "", false
}

type ChannelSnapshot struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// TransactionSnapshot is the denormalized copy of a transaction stored with
// each action log entry.
type TransactionSnapshot struct {
	Reference  string          `json:"reference"`
	Amount     int64           `json:"amount"`
	Fees       int64           `json:"fees"`
	Currency   string          `json:"currency"`
	Status     Status          `json:"status"`
	PayeeName  string          `json:"payeeName"`
	PayeePhone string          `json:"payeePhone"`
	Channel    ChannelSnapshot `json:"channel"`
}

// ActionLogEntry is an append-only audit record of one lifecycle event.
type ActionLogEntry struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	Type          ActionType          `json:"type" db:"type"`
	TransactionID uuid.UUID           `json:"transactionId" db:"transaction_id"`
	Snapshot      TransactionSnapshot `json:"transaction" db:"-"`
	CreatedAt     time.Time           `json:"createdAt" db:"created_at"`
}

func (a *ActionLogEntry) Value(relation, field string) (any, bool) {
	if relation != "" {
		return nil, false
	}
	switch field {
	case "id":
		return a.ID.String(), true
	case "type":
		return string(a.Type), true
	case "transactionId":
		return a.TransactionID.String(), true
	case "createdAt":
		return a.CreatedAt, true
	}
	return nil, false
}

type ActionRepository interface {
	CreateAction(ctx context.Context, entry *ActionLogEntry) error
	CountActions(ctx context.Context, where query.Predicate) (int64, error)
	FindActions(ctx context.Context, where query.Predicate, window query.Window) ([]*ActionLogEntry, error)
}
