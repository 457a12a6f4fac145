package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
)

type ledgerRepository struct {
	db *ledgerTable
}

func NewLedgerRepository(db *DB) ledger.Repository {
	return &ledgerRepository{db: db.ledger}
}

func (repo *ledgerRepository) CreateEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *ledgerRepository) GetEntry(_ context.Context, id string) (ledger.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.table[id]; ok {
		return *e, nil
	}
	return ledger.Entry{}, ledger.ErrEntryNotFound
}

func (repo *ledgerRepository) FindLatestEntry(
	_ context.Context,
	businessID, workspaceID string,
	t ledger.EntityType,
	entityID string,
	pendingOnly bool,
) (ledger.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *ledger.Entry
	for _, e := range repo.db.table {
		if e.BusinessID != businessID || e.WorkspaceID != workspaceID || e.EntityType != t || e.EntityID != entityID {
			continue
		}
		if pendingOnly && e.IsRestored() {
			continue
		}
		if latest == nil || e.DeletedAt.After(latest.DeletedAt) {
			latest = e
		}
	}
	if latest == nil {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return *latest, nil
}

func (repo *ledgerRepository) QueryEntries(
	_ context.Context,
	businessID string,
	filter ledger.QueryFilter,
	ordering ...core.DBOrdering,
) ([]ledger.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]ledger.Entry, 0)
	for _, e := range repo.db.table {
		if e.BusinessID == businessID && filter.Match(*e) {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareEntries(entries[i], entries[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func compareEntries(a, b ledger.Entry, field string) int {
	switch field {
	case "deleted_at":
		return compareTimes(a.DeletedAt, b.DeletedAt)
	case "restored_at":
		return compareTimes(a.RestoredAt, b.RestoredAt)
	case "entity_name":
		return strings.Compare(a.EntityName, b.EntityName)
	case "entity_type":
		return strings.Compare(string(a.EntityType), string(b.EntityType))
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *ledgerRepository) ClaimRestore(_ context.Context, id string, at time.Time, by string) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.table[id]
	if !ok || e.IsRestored() {
		return false, nil
	}
	e.RestoredAt = at
	e.RestoredBy = by
	return true, nil
}

func (repo *ledgerRepository) ReleaseRestore(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if e, ok := repo.db.table[id]; ok {
		e.RestoredAt = time.Time{}
		e.RestoredBy = ""
	}
	return nil
}
