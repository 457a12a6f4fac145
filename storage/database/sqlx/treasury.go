package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/TTR-x/ttr-gestion-sub002/core/treasury"
)

type balanceRow struct {
	BusinessID  string          `db:"business_id"`
	WorkspaceID string          `db:"workspace_id"`
	Amount      decimal.Decimal `db:"amount"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r balanceRow) toBalance() treasury.Balance {
	return treasury.Balance{
		BusinessID:  r.BusinessID,
		WorkspaceID: r.WorkspaceID,
		Amount:      r.Amount,
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

const balanceColumns = `business_id, workspace_id, amount, updated_at`

type treasuryRepository struct {
	db *sqlx.DB
}

var _ treasury.Repository = (*treasuryRepository)(nil)

func NewTreasuryRepository(db *sqlx.DB) *treasuryRepository {
	return &treasuryRepository{db: db}
}

func (repo *treasuryRepository) GetBalance(ctx context.Context, businessID, workspaceID string) (treasury.Balance, error) {
	var row balanceRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+balanceColumns+` FROM treasury_balances WHERE business_id = $1 AND workspace_id = $2`,
		businessID, workspaceID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return treasury.Balance{BusinessID: businessID, WorkspaceID: workspaceID, Amount: decimal.Zero}, nil
		}
		return treasury.Balance{}, errors.Wrap(err, "selecting balance")
	}
	return row.toBalance(), nil
}

func (repo *treasuryRepository) AdjustBalance(
	ctx context.Context,
	businessID, workspaceID string,
	delta decimal.Decimal,
	at time.Time,
) (treasury.Balance, error) {
	var row balanceRow
	err := repo.db.GetContext(ctx, &row,
		`INSERT INTO treasury_balances (`+balanceColumns+`) VALUES ($1, $2, $3, $4)
		ON CONFLICT (business_id, workspace_id) DO UPDATE SET
			amount = treasury_balances.amount + EXCLUDED.amount,
			updated_at = EXCLUDED.updated_at
		RETURNING `+balanceColumns,
		businessID, workspaceID, delta, at,
	)
	if err != nil {
		return treasury.Balance{}, errors.Wrap(err, "adjusting balance")
	}
	return row.toBalance(), nil
}
