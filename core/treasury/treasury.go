package treasury

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the cash balance of a workspace.
type Balance struct {
	BusinessID  string          `json:"business_id"`
	WorkspaceID string          `json:"workspace_id"`
	Amount      decimal.Decimal `json:"amount"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type (
	Repository interface {
		// GetBalance returns a zero balance for unknown workspaces.
		GetBalance(ctx context.Context, businessID, workspaceID string) (Balance, error)
		// AdjustBalance atomically adds delta to the balance and returns the result.
		AdjustBalance(ctx context.Context, businessID, workspaceID string, delta decimal.Decimal, at time.Time) (Balance, error)
	}

	Service interface {
		Balance(ctx context.Context, businessID, workspaceID string) (Balance, error)
		Adjust(ctx context.Context, businessID, workspaceID string, delta decimal.Decimal) (Balance, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Balance(ctx context.Context, businessID, workspaceID string) (Balance, error) {
	return svc.repo.GetBalance(ctx, businessID, workspaceID)
}

func (svc *service) Adjust(ctx context.Context, businessID, workspaceID string, delta decimal.Decimal) (Balance, error) {
	if delta.IsZero() {
		return svc.repo.GetBalance(ctx, businessID, workspaceID)
	}
	return svc.repo.AdjustBalance(ctx, businessID, workspaceID, delta, time.Now().UTC())
}
