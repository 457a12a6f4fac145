package sqlxrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
)

type entryRow struct {
	ID           string      `db:"id"`
	BusinessID   string      `db:"business_id"`
	EntityType   string      `db:"entity_type"`
	EntityID     string      `db:"entity_id"`
	EntityName   string      `db:"entity_name"`
	DeletedAt    time.Time   `db:"deleted_at"`
	DeletedBy    string      `db:"deleted_by"`
	WorkspaceID  string      `db:"workspace_id"`
	CanRestore   bool        `db:"can_restore"`
	RestoredAt   null.Time   `db:"restored_at"`
	RestoredBy   null.String `db:"restored_by"`
	Calculations []byte      `db:"calculations"`
}

func (r entryRow) toEntry() (ledger.Entry, error) {
	e := ledger.Entry{
		ID:          r.ID,
		BusinessID:  r.BusinessID,
		EntityType:  ledger.EntityType(r.EntityType),
		EntityID:    r.EntityID,
		EntityName:  r.EntityName,
		DeletedAt:   r.DeletedAt.UTC(),
		DeletedBy:   r.DeletedBy,
		WorkspaceID: r.WorkspaceID,
		CanRestore:  r.CanRestore,
		RestoredAt:  r.RestoredAt.Time.UTC(),
		RestoredBy:  r.RestoredBy.String,
	}
	if !r.RestoredAt.Valid {
		e.RestoredAt = time.Time{}
	}
	if len(r.Calculations) > 0 {
		if err := json.Unmarshal(r.Calculations, &e.Calculations); err != nil {
			return ledger.Entry{}, errors.Wrapf(err, "decoding calculations of entry %s", r.ID)
		}
	}
	return e, nil
}

const entryColumns = `id, business_id, entity_type, entity_id, entity_name, deleted_at, deleted_by,
	workspace_id, can_restore, restored_at, restored_by, calculations`

// orderingColumns maps ledger.OrderingFields to columns.
var orderingColumns = map[string]string{
	"deleted_at":  "deleted_at",
	"restored_at": "restored_at",
	"entity_name": "entity_name",
	"entity_type": "entity_type",
}

type ledgerRepository struct {
	db *sqlx.DB
}

var _ ledger.Repository = (*ledgerRepository)(nil)

func NewLedgerRepository(db *sqlx.DB) *ledgerRepository {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) CreateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	calcs, err := json.Marshal(e.Calculations)
	if err != nil {
		return ledger.Entry{}, errors.Wrap(err, "encoding calculations")
	}
	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO deletion_history (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.BusinessID, string(e.EntityType), e.EntityID, e.EntityName, e.DeletedAt, e.DeletedBy,
		e.WorkspaceID, e.CanRestore,
		null.NewTime(e.RestoredAt, !e.RestoredAt.IsZero()),
		null.NewString(e.RestoredBy, e.RestoredBy != ""),
		calcs,
	)
	if err != nil {
		return ledger.Entry{}, errors.Wrap(err, "inserting deletion entry")
	}
	return e, nil
}

func (repo *ledgerRepository) GetEntry(ctx context.Context, id string) (ledger.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	var row entryRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+entryColumns+` FROM deletion_history WHERE id = $1`, id); err != nil {
		return ledger.Entry{}, trapNoRows(err, ledger.ErrEntryNotFound)
	}
	return row.toEntry()
}

func (repo *ledgerRepository) FindLatestEntry(
	ctx context.Context,
	businessID, workspaceID string,
	t ledger.EntityType,
	entityID string,
	pendingOnly bool,
) (ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM deletion_history
		WHERE business_id = $1 AND workspace_id = $2 AND entity_type = $3 AND entity_id = $4`
	if pendingOnly {
		query += ` AND restored_at IS NULL`
	}
	query += ` ORDER BY deleted_at DESC LIMIT 1`

	var row entryRow
	if err := repo.db.GetContext(ctx, &row, query, businessID, workspaceID, string(t), entityID); err != nil {
		return ledger.Entry{}, trapNoRows(err, ledger.ErrEntryNotFound)
	}
	return row.toEntry()
}

func (repo *ledgerRepository) QueryEntries(
	ctx context.Context,
	businessID string,
	filter ledger.QueryFilter,
	ordering ...core.DBOrdering,
) ([]ledger.Entry, error) {
	where := []string{"business_id = ?"}
	args := []interface{}{businessID}
	if filter.WorkspaceID != "" {
		where = append(where, "workspace_id = ?")
		args = append(args, filter.WorkspaceID)
	}
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Restored != nil {
		if *filter.Restored {
			where = append(where, "restored_at IS NOT NULL")
		} else {
			where = append(where, "restored_at IS NULL")
		}
	}

	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := orderingColumns[ord.Field]; ok {
			orderBy = append(orderBy, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	orderBy = append(orderBy, "id ASC")

	query := fmt.Sprintf(`SELECT %s FROM deletion_history WHERE %s ORDER BY %s`,
		entryColumns, strings.Join(where, " AND "), strings.Join(orderBy, ", "))

	rows := make([]entryRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting deletion entries")
	}
	entries := make([]ledger.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (repo *ledgerRepository) ClaimRestore(ctx context.Context, id string, at time.Time, by string) (bool, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE deletion_history SET restored_at = $2, restored_by = $3 WHERE id = $1 AND restored_at IS NULL`,
		id, at, by,
	)
	if err != nil {
		return false, errors.Wrap(err, "claiming restore")
	}
	return affectedOne(res)
}

func (repo *ledgerRepository) ReleaseRestore(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE deletion_history SET restored_at = NULL, restored_by = NULL WHERE id = $1`, id)
	return errors.Wrap(err, "releasing restore")
}
