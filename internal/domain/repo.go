package domain

import (
	"context"
	"time"
)

// OrderRepository is the operation surface shared by the primary store
// adapter and the fallback store. List applies the filter, sorts by
// creation time descending and returns one page plus the total match count.
// UpdateByID and DeleteByID return ErrNotFound when the target is missing.
type OrderRepository interface {
	List(ctx context.Context, f Filter) ([]Order, int, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, order *Order) (*Order, error)
	UpdateByID(ctx context.Context, id string, patch *Order) (*Order, error)
	DeleteByID(ctx context.Context, id string) (*Order, error)
	Count(ctx context.Context, f Filter) (int, error)
	Overdue(ctx context.Context, now time.Time) ([]Order, error)
	Stats(ctx context.Context, now time.Time) (*Stats, error)
	Analytics(ctx context.Context, since time.Time) ([]AnalyticsPoint, error)
}
