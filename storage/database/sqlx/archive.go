package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
)

type entityRow struct {
	BusinessID  string    `db:"business_id"`
	WorkspaceID string    `db:"workspace_id"`
	EntityType  string    `db:"entity_type"`
	EntityID    string    `db:"entity_id"`
	Name        string    `db:"name"`
	Payload     []byte    `db:"payload"`
	DeletedAt   null.Time `db:"deleted_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r entityRow) toEntity() ledger.Entity {
	e := ledger.Entity{
		BusinessID:  r.BusinessID,
		WorkspaceID: r.WorkspaceID,
		EntityType:  ledger.EntityType(r.EntityType),
		EntityID:    r.EntityID,
		Name:        r.Name,
		Payload:     r.Payload,
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.DeletedAt.Valid {
		e.DeletedAt = r.DeletedAt.Time.UTC()
	}
	return e
}

const entityColumns = `business_id, workspace_id, entity_type, entity_id, name, payload, deleted_at, updated_at`

type archiveRepository struct {
	db *sqlx.DB
}

var _ ledger.Archive = (*archiveRepository)(nil)

func NewArchiveRepository(db *sqlx.DB) *archiveRepository {
	return &archiveRepository{db: db}
}

func (repo *archiveRepository) UpsertEntity(ctx context.Context, e ledger.Entity) (ledger.Entity, error) {
	payload := []byte(e.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	var row entityRow
	err := repo.db.GetContext(ctx, &row,
		`INSERT INTO entities (`+entityColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (business_id, entity_type, entity_id) DO UPDATE SET
			workspace_id = EXCLUDED.workspace_id,
			name = EXCLUDED.name,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
		RETURNING `+entityColumns,
		e.BusinessID, e.WorkspaceID, string(e.EntityType), e.EntityID, e.Name, payload,
		null.NewTime(e.DeletedAt, !e.DeletedAt.IsZero()), e.UpdatedAt,
	)
	if err != nil {
		return ledger.Entity{}, errors.Wrap(err, "upserting entity")
	}
	return row.toEntity(), nil
}

func (repo *archiveRepository) GetEntity(ctx context.Context, businessID string, t ledger.EntityType, entityID string) (ledger.Entity, error) {
	var row entityRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+entityColumns+` FROM entities WHERE business_id = $1 AND entity_type = $2 AND entity_id = $3`,
		businessID, string(t), entityID,
	)
	if err != nil {
		return ledger.Entity{}, trapNoRows(err, ledger.ErrEntityNotFound)
	}
	return row.toEntity(), nil
}

func (repo *archiveRepository) MarkDeleted(ctx context.Context, businessID string, t ledger.EntityType, entityID string, at time.Time) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE entities SET deleted_at = $4, updated_at = $4
		WHERE business_id = $1 AND entity_type = $2 AND entity_id = $3 AND deleted_at IS NULL`,
		businessID, string(t), entityID, at,
	)
	if err != nil {
		return errors.Wrap(err, "marking entity deleted")
	}
	if ok, err := affectedOne(res); err != nil {
		return err
	} else if !ok {
		return ledger.ErrEntityNotFound
	}
	return nil
}

func (repo *archiveRepository) MarkActive(ctx context.Context, businessID string, t ledger.EntityType, entityID string, at time.Time) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE entities SET deleted_at = NULL, updated_at = $4
		WHERE business_id = $1 AND entity_type = $2 AND entity_id = $3`,
		businessID, string(t), entityID, at,
	)
	if err != nil {
		return errors.Wrap(err, "marking entity active")
	}
	if ok, err := affectedOne(res); err != nil {
		return err
	} else if !ok {
		return ledger.ErrEntityNotFound
	}
	return nil
}
