package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound             = errors.New("device not found")
	ErrTokenMissing         = errors.New("override token missing")
	ErrTokenNotFound        = errors.New("override token not found")
	ErrTokenExpired         = errors.New("override token expired")
	ErrTokenAlreadyUsed     = errors.New("override token already used")
	ErrDeviceReplaceFailure = errors.New("devices could not be replaced")
)

type (
	Repository interface {
		// UpsertDevice creates the device on first sight and refreshes LastSeenAt, Label and UserAgent afterwards.
		UpsertDevice(ctx context.Context, d Device) (Device, error)
		GetDevice(ctx context.Context, businessID, deviceID string) (Device, error)
		QueryDevices(ctx context.Context, businessID string) ([]Device, error)
		CountDevices(ctx context.Context, businessID string) (int, error)
		// DeleteDevicesExcept removes every device of the business but keepDeviceID and returns how many went.
		DeleteDevicesExcept(ctx context.Context, businessID, keepDeviceID string) (int, error)

		CreateOverrideToken(ctx context.Context, tok OverrideToken) error
		GetOverrideToken(ctx context.Context, token string) (OverrideToken, error)
		// ClaimOverrideToken marks the token used iff it is unused and not expired at `at`.
		// It reports whether this call performed the transition.
		ClaimOverrideToken(ctx context.Context, token string, at time.Time) (bool, error)
		// ReleaseOverrideToken reverts a claim.
		ReleaseOverrideToken(ctx context.Context, token string) error
	}

	Service interface {
		Register(ctx context.Context, businessID string, reg Registration) (Device, int, error)
		List(ctx context.Context, businessID string) ([]Device, error)
		Count(ctx context.Context, businessID string) (int, error)
		RemoveAllExcept(ctx context.Context, businessID, keepDeviceID string) (int, error)
		RequestOverride(ctx context.Context, requester member.Member, keepDeviceID string) (OverrideToken, error)
		ConfirmOverride(ctx context.Context, token string) (ConfirmResult, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

// Register records a device connection and returns the number of devices now known for the business.
func (svc *service) Register(ctx context.Context, businessID string, reg Registration) (Device, int, error) {
	now := NowFunc().UTC()
	d, err := svc.repo.UpsertDevice(ctx, Device{
		BusinessID:  businessID,
		DeviceID:    reg.DeviceID,
		Label:       reg.Label,
		UserAgent:   reg.UserAgent,
		FirstSeenAt: now,
		LastSeenAt:  now,
	})
	if err != nil {
		return Device{}, 0, pkgerrors.Wrap(err, "upserting device")
	}
	count, err := svc.repo.CountDevices(ctx, businessID)
	if err != nil {
		return Device{}, 0, pkgerrors.Wrap(err, "counting devices")
	}
	return d, count, nil
}

func (svc *service) List(ctx context.Context, businessID string) ([]Device, error) {
	return svc.repo.QueryDevices(ctx, businessID)
}

func (svc *service) Count(ctx context.Context, businessID string) (int, error) {
	return svc.repo.CountDevices(ctx, businessID)
}

// RemoveAllExcept drops every device of the business but keepDeviceID.
func (svc *service) RemoveAllExcept(ctx context.Context, businessID, keepDeviceID string) (int, error) {
	n, err := svc.repo.DeleteDevicesExcept(ctx, businessID, keepDeviceID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		svc.logger.Info("devices removed", map[string]interface{}{
			"business_id": businessID,
			"kept":        keepDeviceID,
			"removed":     n,
		})
	}
	return n, nil
}

// RequestOverride issues a single-use token and emails its confirmation link to the requester.
func (svc *service) RequestOverride(ctx context.Context, requester member.Member, keepDeviceID string) (OverrideToken, error) {
	d, err := svc.repo.GetDevice(ctx, requester.BusinessID, keepDeviceID)
	if err != nil {
		if err == ErrNotFound {
			return OverrideToken{}, core.NewValidationError(err, core.FieldError{Field: "keep_device_id", Error: err.Error()})
		}
		return OverrideToken{}, pkgerrors.Wrap(err, "getting device")
	}

	now := NowFunc().UTC()
	tok := OverrideToken{
		Token:       uuid.New().String(),
		BusinessID:  requester.BusinessID,
		NewDeviceID: d.DeviceID,
		UserEmail:   requester.Email,
		CreatedAt:   now,
		ExpiresAt:   now.Add(svc.conf.OverrideTokenTTL),
	}
	if err = svc.repo.CreateOverrideToken(ctx, tok); err != nil {
		return OverrideToken{}, pkgerrors.Wrap(err, "creating override token")
	}

	svc.mailSvc.SendMessages(overrideMessage(requester, d, tok, svc.conf))
	svc.logger.Info("device override requested", map[string]interface{}{
		"business_id": tok.BusinessID,
		"device_id":   tok.NewDeviceID,
	}, requester)
	return tok, nil
}

// ConfirmOverride consumes the token and removes every other device of its business.
// Only the caller that claims the token prunes; a failed prune releases the claim.
func (svc *service) ConfirmOverride(ctx context.Context, token string) (ConfirmResult, error) {
	token = core.CleanString(token)
	if token == "" {
		return ConfirmResult{}, ErrTokenMissing
	}

	tok, err := svc.repo.GetOverrideToken(ctx, token)
	if err != nil {
		if err == ErrTokenNotFound {
			return ConfirmResult{}, err
		}
		return ConfirmResult{}, pkgerrors.Wrap(err, "getting override token")
	}
	now := NowFunc().UTC()
	if err = checkToken(tok, now); err != nil {
		return ConfirmResult{}, err
	}

	claimed, err := svc.repo.ClaimOverrideToken(ctx, token, now)
	if err != nil {
		return ConfirmResult{}, pkgerrors.Wrap(err, "claiming override token")
	}
	if !claimed {
		// lost a race: report the state the winner left behind
		if tok, err = svc.repo.GetOverrideToken(ctx, token); err != nil {
			return ConfirmResult{}, pkgerrors.Wrap(err, "getting override token")
		}
		if err = checkToken(tok, now); err != nil {
			return ConfirmResult{}, err
		}
		// the winner failed and released the token: the link is still good
		return ConfirmResult{}, ErrDeviceReplaceFailure
	}

	removed, err := svc.RemoveAllExcept(ctx, tok.BusinessID, tok.NewDeviceID)
	if err != nil {
		svc.logger.Error("device override: pruning devices", err, map[string]interface{}{
			"business_id": tok.BusinessID,
			"device_id":   tok.NewDeviceID,
		})
		if rErr := svc.repo.ReleaseOverrideToken(ctx, token); rErr != nil {
			svc.logger.Error("device override: releasing token", rErr)
		}
		return ConfirmResult{}, pkgerrors.Wrap(ErrDeviceReplaceFailure, err.Error())
	}

	tok.Used = true
	tok.UsedAt = now
	return ConfirmResult{Token: tok, Kept: tok.NewDeviceID, Removed: removed}, nil
}

func checkToken(tok OverrideToken, now time.Time) error {
	if tok.Used {
		return ErrTokenAlreadyUsed
	}
	if tok.IsExpired(now) {
		return ErrTokenExpired
	}
	return nil
}
