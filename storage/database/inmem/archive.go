package inmemdb

import (
	"context"
	"time"

	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
)

type archiveRepository struct {
	db *entityTable
}

func NewArchiveRepository(db *DB) ledger.Archive {
	return &archiveRepository{db: db.entity}
}

func (repo *archiveRepository) UpsertEntity(_ context.Context, e ledger.Entity) (ledger.Entity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := entityKey{e.BusinessID, e.EntityType, e.EntityID}
	if old, ok := repo.db.table[key]; ok {
		e.DeletedAt = old.DeletedAt
	}
	repo.db.table[key] = &e
	return e, nil
}

func (repo *archiveRepository) GetEntity(_ context.Context, businessID string, t ledger.EntityType, entityID string) (ledger.Entity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.table[entityKey{businessID, t, entityID}]; ok {
		return *e, nil
	}
	return ledger.Entity{}, ledger.ErrEntityNotFound
}

func (repo *archiveRepository) MarkDeleted(_ context.Context, businessID string, t ledger.EntityType, entityID string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.table[entityKey{businessID, t, entityID}]
	if !ok || e.IsDeleted() {
		return ledger.ErrEntityNotFound
	}
	e.DeletedAt = at
	e.UpdatedAt = at
	return nil
}

func (repo *archiveRepository) MarkActive(_ context.Context, businessID string, t ledger.EntityType, entityID string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.table[entityKey{businessID, t, entityID}]
	if !ok {
		return ledger.ErrEntityNotFound
	}
	e.DeletedAt = time.Time{}
	e.UpdatedAt = at
	return nil
}
