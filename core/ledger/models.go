package ledger

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/TTR-x/ttr-gestion-sub002/core"
)

// EntityType names the kinds of business records that can be deleted and restored.
type EntityType string

const (
	EntityClient      EntityType = "client"
	EntityReservation EntityType = "reservation"
	EntityStock       EntityType = "stock"
	EntityExpense     EntityType = "expense"
	EntityInvestment  EntityType = "investment"
	EntityQuickIncome EntityType = "quickIncome"
)

var EntityTypes = []EntityType{
	EntityClient,
	EntityReservation,
	EntityStock,
	EntityExpense,
	EntityInvestment,
	EntityQuickIncome,
}

func (t EntityType) Valid() bool {
	for _, et := range EntityTypes {
		if et == t {
			return true
		}
	}
	return false
}

const treasuryAdjustmentKey = "treasuryAdjustment"

// Calculations holds the amounts needed to reverse a deletion's financial effect.
// On the wire it is a flat object: {"treasuryAdjustment": "-5000", "<other>": "..."}.
type Calculations struct {
	TreasuryAdjustment *decimal.Decimal
	Extra              map[string]decimal.Decimal
}

func (c Calculations) Adjustment() decimal.Decimal {
	if c.TreasuryAdjustment == nil {
		return decimal.Zero
	}
	return *c.TreasuryAdjustment
}

func (c Calculations) MarshalJSON() ([]byte, error) {
	flat := make(map[string]decimal.Decimal, len(c.Extra)+1)
	for k, v := range c.Extra {
		flat[k] = v
	}
	if c.TreasuryAdjustment != nil {
		flat[treasuryAdjustmentKey] = *c.TreasuryAdjustment
	}
	return json.Marshal(flat)
}

func (c *Calculations) UnmarshalJSON(data []byte) error {
	var flat map[string]decimal.Decimal
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*c = Calculations{}
	for k, v := range flat {
		if k == treasuryAdjustmentKey {
			v := v
			c.TreasuryAdjustment = &v
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]decimal.Decimal)
		}
		c.Extra[k] = v
	}
	return nil
}

// ExtraKeys returns the extra calculation names in a stable order.
func (c Calculations) ExtraKeys() []string {
	keys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entry is an append-only deletion record. RestoredAt is set at most once.
type Entry struct {
	ID           string
	BusinessID   string
	EntityType   EntityType
	EntityID     string
	EntityName   string
	DeletedAt    time.Time // UTC
	DeletedBy    string
	WorkspaceID  string
	CanRestore   bool
	RestoredAt   time.Time // UTC; zero while not restored
	RestoredBy   string
	Calculations Calculations
}

func (e Entry) IsRestored() bool { return !e.RestoredAt.IsZero() }

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           string       `json:"id"`
		BusinessID   string       `json:"businessId"`
		EntityType   EntityType   `json:"entityType"`
		EntityID     string       `json:"entityId"`
		EntityName   string       `json:"entityName"`
		DeletedAt    int64        `json:"deletedAt"`
		DeletedBy    string       `json:"deletedBy"`
		WorkspaceID  string       `json:"workspaceId"`
		CanRestore   bool         `json:"canRestore"`
		RestoredAt   int64        `json:"restoredAt,omitempty"`
		RestoredBy   string       `json:"restoredBy,omitempty"`
		Calculations Calculations `json:"calculations"`
	}{
		ID:           e.ID,
		BusinessID:   e.BusinessID,
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		EntityName:   e.EntityName,
		DeletedAt:    core.EpochMillis(e.DeletedAt),
		DeletedBy:    e.DeletedBy,
		WorkspaceID:  e.WorkspaceID,
		CanRestore:   e.CanRestore,
		RestoredAt:   core.EpochMillis(e.RestoredAt),
		RestoredBy:   e.RestoredBy,
		Calculations: e.Calculations,
	})
}

// Entity is the server-side copy of a business record that deletions mark inactive.
type Entity struct {
	BusinessID  string          `json:"businessId"`
	WorkspaceID string          `json:"workspaceId"`
	EntityType  EntityType      `json:"entityType"`
	EntityID    string          `json:"entityId"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	DeletedAt   time.Time       `json:"-"`
	UpdatedAt   time.Time       `json:"-"`
}

func (e Entity) IsDeleted() bool { return !e.DeletedAt.IsZero() }

// EntitySnapshot is the latest copy of a business record as pushed by a device.
type EntitySnapshot struct {
	EntityType  EntityType      `json:"entityType" validate:"required,entitytype"`
	EntityID    string          `json:"entityId" validate:"required,notblank,max=128"`
	WorkspaceID string          `json:"workspaceId" validate:"required,notblank"`
	Name        string          `json:"name" validate:"required,notblank,max=200"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func (s *EntitySnapshot) Validate(validate *validator.Validate) error {
	s.EntityID = core.CleanString(s.EntityID)
	s.WorkspaceID = core.CleanString(s.WorkspaceID)
	s.Name = core.CleanString(s.Name)
	return validate.Struct(s)
}

// NewDeletion describes a deletion to record.
type NewDeletion struct {
	EntityType   EntityType   `json:"entityType" validate:"required,entitytype"`
	EntityID     string       `json:"entityId" validate:"required,notblank,max=128"`
	EntityName   string       `json:"entityName" validate:"required,notblank,max=200"`
	DeletedBy    string       `json:"deletedBy" validate:"required,notblank"`
	WorkspaceID  string       `json:"workspaceId" validate:"required,notblank"`
	Calculations Calculations `json:"calculations"`
}

func (nd *NewDeletion) Validate(validate *validator.Validate) error {
	nd.EntityID = core.CleanString(nd.EntityID)
	nd.EntityName = core.CleanString(nd.EntityName)
	nd.DeletedBy = core.CleanString(nd.DeletedBy)
	nd.WorkspaceID = core.CleanString(nd.WorkspaceID)
	return validate.Struct(nd)
}

// RestoreRequest asks for the most recent deletion of an entity to be undone.
type RestoreRequest struct {
	EntityType       EntityType `json:"entityType" validate:"required,entitytype"`
	EntityID         string     `json:"entityId" validate:"required,notblank"`
	WorkspaceID      string     `json:"workspaceId" validate:"required,notblank"`
	BusinessID       string     `json:"-"`
	ActorDisplayName string     `json:"-"`
	ActorUID         string     `json:"-"`
}

func (rr *RestoreRequest) Validate(validate *validator.Validate) error {
	rr.EntityID = core.CleanString(rr.EntityID)
	rr.WorkspaceID = core.CleanString(rr.WorkspaceID)
	return validate.Struct(rr)
}

type RestoreResult struct {
	Entry             Entry           `json:"entry"`
	AppliedAdjustment decimal.Decimal `json:"appliedAdjustment"`
	NewBalance        decimal.Decimal `json:"newBalance"`
	Message           string          `json:"message"`
}

type QueryFilter struct {
	WorkspaceID string     `query:"workspace_id"`
	EntityType  EntityType `query:"entity_type"`
	EntityID    string     `query:"entity_id"`
	Restored    *bool      `query:"restored"`
}

func (qf *QueryFilter) Clean() {
	qf.WorkspaceID = core.CleanString(qf.WorkspaceID)
	qf.EntityID = core.CleanString(qf.EntityID)
}

// Match reports whether e satisfies every set field of qf.
func (qf QueryFilter) Match(e Entry) bool {
	if qf.WorkspaceID != "" && e.WorkspaceID != qf.WorkspaceID {
		return false
	}
	if qf.EntityType != "" && e.EntityType != qf.EntityType {
		return false
	}
	if qf.EntityID != "" && e.EntityID != qf.EntityID {
		return false
	}
	if qf.Restored != nil && e.IsRestored() != *qf.Restored {
		return false
	}
	return true
}

var OrderingFields = []string{"deleted_at", "restored_at", "entity_name", "entity_type"}
