package device

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/TTR-x/ttr-gestion-sub002/core"
)

// Device is a device that authenticated at least once for a business.
type Device struct {
	BusinessID  string    `json:"business_id"`
	DeviceID    string    `json:"device_id"`
	Label       string    `json:"label"`
	UserAgent   string    `json:"user_agent"`
	FirstSeenAt time.Time `json:"first_seen_at"` // UTC
	LastSeenAt  time.Time `json:"last_seen_at"`  // UTC
}

func (d Device) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BusinessID  string `json:"business_id"`
		DeviceID    string `json:"device_id"`
		Label       string `json:"label"`
		UserAgent   string `json:"user_agent"`
		FirstSeenAt int64  `json:"first_seen_at"`
		LastSeenAt  int64  `json:"last_seen_at"`
	}{
		BusinessID:  d.BusinessID,
		DeviceID:    d.DeviceID,
		Label:       d.Label,
		UserAgent:   d.UserAgent,
		FirstSeenAt: core.EpochMillis(d.FirstSeenAt),
		LastSeenAt:  core.EpochMillis(d.LastSeenAt),
	})
}

// OverrideToken authorizes, once, the removal of every device of a business but NewDeviceID.
type OverrideToken struct {
	Token       string
	BusinessID  string
	NewDeviceID string
	UserEmail   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Used        bool
	UsedAt      time.Time
}

func (tok OverrideToken) IsExpired(now time.Time) bool {
	return !now.Before(tok.ExpiresAt)
}

// MarshalJSON never exposes the token value.
func (tok OverrideToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BusinessID  string `json:"businessId"`
		NewDeviceID string `json:"newDeviceId"`
		UserEmail   string `json:"userEmail"`
		CreatedAt   int64  `json:"createdAt"`
		ExpiresAt   int64  `json:"expiresAt"`
		Used        bool   `json:"used"`
		UsedAt      int64  `json:"usedAt,omitempty"`
	}{
		BusinessID:  tok.BusinessID,
		NewDeviceID: tok.NewDeviceID,
		UserEmail:   tok.UserEmail,
		CreatedAt:   core.EpochMillis(tok.CreatedAt),
		ExpiresAt:   core.EpochMillis(tok.ExpiresAt),
		Used:        tok.Used,
		UsedAt:      core.EpochMillis(tok.UsedAt),
	})
}

// Registration is sent by a device each time it connects.
type Registration struct {
	DeviceID  string `json:"device_id" validate:"required,deviceid,max=128"`
	Label     string `json:"label" validate:"max=100"`
	UserAgent string `json:"user_agent" validate:"max=512"`
}

func (r *Registration) Validate(validate *validator.Validate) error {
	r.DeviceID = core.CleanString(r.DeviceID)
	r.Label = core.CleanString(r.Label)
	return validate.Struct(r)
}

type OverrideRequest struct {
	KeepDeviceID string `json:"keep_device_id" validate:"required,deviceid"`
}

func (or *OverrideRequest) Validate(validate *validator.Validate) error {
	or.KeepDeviceID = core.CleanString(or.KeepDeviceID)
	return validate.Struct(or)
}

// ConfirmResult describes a successful override.
type ConfirmResult struct {
	Token   OverrideToken
	Kept    string
	Removed int
}
