package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	"github.com/TTR-x/ttr-gestion-sub002/core/treasury"
)

var (
	NowFunc = time.Now // mockable

	restoreLockTTL = 10 * time.Second

	// errors
	ErrEntryNotFound      = errors.New("deletion entry not found")
	ErrEntityNotFound     = errors.New("entity not found")
	ErrRestoreNotFound    = errors.New("no deletion to restore for this entity")
	ErrRestoreAlreadyDone = errors.New("this deletion has already been restored")
	ErrRestoreNotAllowed  = errors.New("this deletion cannot be restored")

	errInvalidEntityType = core.NewValidationError(nil, core.FieldError{Field: "entityType", Error: "unknown entity type"})
	errMissingEntityID   = core.NewValidationError(nil, core.FieldError{Field: "entityId", Error: "this field is required"})
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		GetEntry(ctx context.Context, id string) (Entry, error)
		// FindLatestEntry returns the most recent entry for the entity, optionally only un-restored ones.
		FindLatestEntry(ctx context.Context, businessID, workspaceID string, t EntityType, entityID string, pendingOnly bool) (Entry, error)
		QueryEntries(ctx context.Context, businessID string, filter QueryFilter, ordering ...core.DBOrdering) ([]Entry, error)
		// ClaimRestore sets RestoredAt/RestoredBy iff the entry is not restored yet, reporting whether it did.
		ClaimRestore(ctx context.Context, id string, at time.Time, by string) (bool, error)
		ReleaseRestore(ctx context.Context, id string) error
	}

	// Archive stores the server-side copies of business entities.
	Archive interface {
		// UpsertEntity stores e. The deletion state of an existing entity is left untouched.
		UpsertEntity(ctx context.Context, e Entity) (Entity, error)
		GetEntity(ctx context.Context, businessID string, t EntityType, entityID string) (Entity, error)
		// MarkDeleted fails with ErrEntityNotFound unless an active entity exists.
		MarkDeleted(ctx context.Context, businessID string, t EntityType, entityID string, at time.Time) error
		// MarkActive fails with ErrEntityNotFound if the entity does not exist.
		MarkActive(ctx context.Context, businessID string, t EntityType, entityID string, at time.Time) error
	}

	// Members resolves the actor of a restore.
	Members interface {
		GetByID(ctx context.Context, id string) (member.Member, error)
	}

	Service interface {
		SyncEntity(ctx context.Context, businessID string, s EntitySnapshot) (Entity, error)
		RecordDeletion(ctx context.Context, businessID string, nd NewDeletion) (Entry, error)
		SoftDelete(ctx context.Context, actor member.Member, nd NewDeletion) (Entry, error)
		Restore(ctx context.Context, req RestoreRequest) (RestoreResult, error)
		History(ctx context.Context, businessID string, filter QueryFilter, ordering ...core.DBOrdering) ([]Entry, error)
	}

	service struct {
		repo     Repository
		archive  Archive
		treasury treasury.Service
		members  Members
		locker   core.Locker
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	archive Archive,
	treasurySvc treasury.Service,
	members Members,
	locker core.Locker,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		archive:  archive,
		treasury: treasurySvc,
		members:  members,
		locker:   locker,
		logger:   logger,
	}
}

// SyncEntity stores the latest copy of a business record pushed by a device.
func (svc *service) SyncEntity(ctx context.Context, businessID string, s EntitySnapshot) (Entity, error) {
	if err := checkEntityRef(s.EntityType, s.EntityID); err != nil {
		return Entity{}, err
	}
	e, err := svc.archive.UpsertEntity(ctx, Entity{
		BusinessID:  businessID,
		WorkspaceID: s.WorkspaceID,
		EntityType:  s.EntityType,
		EntityID:    s.EntityID,
		Name:        s.Name,
		Payload:     s.Payload,
		UpdatedAt:   NowFunc().UTC(),
	})
	return e, pkgerrors.Wrap(err, "storing entity")
}

// RecordDeletion appends a restorable entry to the ledger.
func (svc *service) RecordDeletion(ctx context.Context, businessID string, nd NewDeletion) (Entry, error) {
	if err := checkEntityRef(nd.EntityType, nd.EntityID); err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:           uuid.New().String(),
		BusinessID:   businessID,
		EntityType:   nd.EntityType,
		EntityID:     nd.EntityID,
		EntityName:   nd.EntityName,
		DeletedAt:    NowFunc().UTC(),
		DeletedBy:    nd.DeletedBy,
		WorkspaceID:  nd.WorkspaceID,
		CanRestore:   true,
		Calculations: nd.Calculations,
	}
	return svc.repo.CreateEntry(ctx, e)
}

// SoftDelete marks the entity deleted, applies its treasury adjustment and records the deletion.
func (svc *service) SoftDelete(ctx context.Context, actor member.Member, nd NewDeletion) (Entry, error) {
	if err := checkEntityRef(nd.EntityType, nd.EntityID); err != nil {
		return Entry{}, err
	}
	now := NowFunc().UTC()
	if err := svc.archive.MarkDeleted(ctx, actor.BusinessID, nd.EntityType, nd.EntityID, now); err != nil {
		if err == ErrEntityNotFound {
			return Entry{}, err
		}
		return Entry{}, pkgerrors.Wrap(err, "marking entity deleted")
	}

	if adj := nd.Calculations.Adjustment(); !adj.IsZero() {
		if _, err := svc.treasury.Adjust(ctx, actor.BusinessID, nd.WorkspaceID, adj); err != nil {
			svc.compensate("soft delete: re-activating entity", func() error {
				return svc.archive.MarkActive(ctx, actor.BusinessID, nd.EntityType, nd.EntityID, now)
			})
			return Entry{}, pkgerrors.Wrap(err, "adjusting treasury")
		}
	}

	e, err := svc.RecordDeletion(ctx, actor.BusinessID, nd)
	if err != nil {
		return Entry{}, pkgerrors.Wrap(err, "recording deletion")
	}
	svc.logger.Info("entity deleted", map[string]interface{}{
		"entity_type": e.EntityType,
		"entity_id":   e.EntityID,
		"entry_id":    e.ID,
	}, actor)
	return e, nil
}

// Restore undoes the most recent deletion of an entity. The inverse treasury adjustment is applied
// at most once per entry: concurrent or repeated calls get ErrRestoreAlreadyDone.
func (svc *service) Restore(ctx context.Context, req RestoreRequest) (RestoreResult, error) {
	actor, err := svc.members.GetByID(ctx, req.ActorUID)
	if err != nil {
		if err == member.ErrNotFound {
			return RestoreResult{}, core.ErrPermissionDenied
		}
		return RestoreResult{}, pkgerrors.Wrap(err, "getting actor")
	}
	if !actor.IsActive || !actor.IsAdmin() || actor.BusinessID != req.BusinessID {
		return RestoreResult{}, core.ErrPermissionDenied
	}

	entry, err := svc.findRestorable(ctx, req)
	if err != nil {
		return RestoreResult{}, err
	}

	lock, err := svc.locker.Obtain(ctx, "ledger:restore:"+entry.ID, restoreLockTTL)
	switch {
	case err == nil:
		defer func() {
			if rErr := lock.Release(context.Background()); rErr != nil {
				svc.logger.Warn("restore: releasing lock", rErr)
			}
		}()
	case errors.Is(err, core.ErrLockNotObtained):
		// the claim below still guards against double application
		svc.logger.Warn("restore: lock not obtained, relying on claim", map[string]interface{}{"entry_id": entry.ID})
	default:
		return RestoreResult{}, pkgerrors.Wrap(err, "obtaining restore lock")
	}

	now := NowFunc().UTC()
	claimed, err := svc.repo.ClaimRestore(ctx, entry.ID, now, req.ActorDisplayName)
	if err != nil {
		return RestoreResult{}, pkgerrors.Wrap(err, "claiming restore")
	}
	if !claimed {
		return RestoreResult{}, ErrRestoreAlreadyDone
	}
	release := func(step string) {
		svc.compensate("restore: "+step+": releasing claim", func() error {
			return svc.repo.ReleaseRestore(ctx, entry.ID)
		})
	}

	if err = svc.archive.MarkActive(ctx, entry.BusinessID, entry.EntityType, entry.EntityID, now); err != nil {
		release("entity")
		if err == ErrEntityNotFound {
			return RestoreResult{}, ErrRestoreNotFound
		}
		return RestoreResult{}, pkgerrors.Wrap(err, "marking entity active")
	}

	applied := entry.Calculations.Adjustment().Neg()
	bal, err := svc.treasury.Adjust(ctx, entry.BusinessID, entry.WorkspaceID, applied)
	if err != nil {
		svc.compensate("restore: treasury: re-deleting entity", func() error {
			return svc.archive.MarkDeleted(ctx, entry.BusinessID, entry.EntityType, entry.EntityID, now)
		})
		release("treasury")
		return RestoreResult{}, pkgerrors.Wrap(err, "adjusting treasury")
	}

	entry.RestoredAt = now
	entry.RestoredBy = req.ActorDisplayName
	svc.logger.Info("entity restored", map[string]interface{}{
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"entry_id":    entry.ID,
		"adjustment":  applied.String(),
	}, actor)

	return RestoreResult{
		Entry:             entry,
		AppliedAdjustment: applied,
		NewBalance:        bal.Amount,
		Message:           restoreMessage(entry, applied),
	}, nil
}

func (svc *service) findRestorable(ctx context.Context, req RestoreRequest) (Entry, error) {
	entry, err := svc.repo.FindLatestEntry(ctx, req.BusinessID, req.WorkspaceID, req.EntityType, req.EntityID, true)
	if err != nil {
		if err != ErrEntryNotFound {
			return Entry{}, pkgerrors.Wrap(err, "finding deletion entry")
		}
		if _, err = svc.repo.FindLatestEntry(ctx, req.BusinessID, req.WorkspaceID, req.EntityType, req.EntityID, false); err == nil {
			return Entry{}, ErrRestoreAlreadyDone
		} else if err != ErrEntryNotFound {
			return Entry{}, pkgerrors.Wrap(err, "finding deletion entry")
		}
		return Entry{}, ErrRestoreNotFound
	}
	if !entry.CanRestore {
		return Entry{}, ErrRestoreNotAllowed
	}
	return entry, nil
}

func (svc *service) History(ctx context.Context, businessID string, filter QueryFilter, ordering ...core.DBOrdering) ([]Entry, error) {
	filter.Clean()
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "deleted_at"}}
	}
	return svc.repo.QueryEntries(ctx, businessID, filter, ordering...)
}

// checkEntityRef guards callers that skip struct validation.
func checkEntityRef(t EntityType, entityID string) error {
	if !t.Valid() {
		return errInvalidEntityType
	}
	if core.CleanString(entityID) == "" {
		return errMissingEntityID
	}
	return nil
}

func (svc *service) compensate(msg string, fn func() error) {
	if err := fn(); err != nil {
		svc.logger.Error(msg, err)
	}
}

func restoreMessage(e Entry, applied decimal.Decimal) string {
	if applied.IsZero() {
		return fmt.Sprintf("%q restored.", e.EntityName)
	}
	return fmt.Sprintf("%q restored. Treasury adjusted by %s.", e.EntityName, treasury.FormatAdjustment(applied))
}
