package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Channel is a payment provider identity. Code is the stable key adapters are
// registered under.
type Channel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

func (c *Channel) Value(relation, field string) (any, bool) {
	if relation != "" {
		return nil, false
	}
	switch field {
	case "id":
		return c.ID.String(), true
	case "code":
		return c.Code, true
	case "name":
		return c.Name, true
	case "createdAt":
		return c.CreatedAt, true
	case "updatedAt":
		return c.UpdatedAt, true
	}
	return nil, false
}

// DefaultChannels are the providers seeded into a fresh store.
var DefaultChannels = []Channel{
	{Code: "om", Name: "Orange Money"},
	{Code: "wave", Name: "Wave"},
}

type ChannelRepository interface {
	// UpsertChannel inserts the channel or refreshes the name of an existing code.
	UpsertChannel(ctx context.Context, channel *Channel) error
	GetChannelByCode(ctx context.Context, code string) (*Channel, error)
	GetChannelByID(ctx context.Context, id uuid.UUID) (*Channel, error)
}
