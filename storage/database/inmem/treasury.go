package inmemdb

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TTR-x/ttr-gestion-sub002/core/treasury"
)

type treasuryRepository struct {
	db *treasuryTable
}

func NewTreasuryRepository(db *DB) treasury.Repository {
	return &treasuryRepository{db: db.treasury}
}

func (repo *treasuryRepository) GetBalance(_ context.Context, businessID, workspaceID string) (treasury.Balance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.table[balanceKey{businessID, workspaceID}]; ok {
		return *b, nil
	}
	return treasury.Balance{BusinessID: businessID, WorkspaceID: workspaceID, Amount: decimal.Zero}, nil
}

func (repo *treasuryRepository) AdjustBalance(
	_ context.Context,
	businessID, workspaceID string,
	delta decimal.Decimal,
	at time.Time,
) (treasury.Balance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := balanceKey{businessID, workspaceID}
	b, ok := repo.db.table[key]
	if !ok {
		b = &treasury.Balance{BusinessID: businessID, WorkspaceID: workspaceID, Amount: decimal.Zero}
		repo.db.table[key] = b
	}
	b.Amount = b.Amount.Add(delta)
	b.UpdatedAt = at
	return *b, nil
}
