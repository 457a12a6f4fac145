package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/TTR-x/ttr-gestion-sub002/core/device"
)

type deviceRow struct {
	BusinessID  string    `db:"business_id"`
	DeviceID    string    `db:"device_id"`
	Label       string    `db:"label"`
	UserAgent   string    `db:"user_agent"`
	FirstSeenAt time.Time `db:"first_seen_at"`
	LastSeenAt  time.Time `db:"last_seen_at"`
}

func (r deviceRow) toDevice() device.Device {
	return device.Device{
		BusinessID:  r.BusinessID,
		DeviceID:    r.DeviceID,
		Label:       r.Label,
		UserAgent:   r.UserAgent,
		FirstSeenAt: r.FirstSeenAt.UTC(),
		LastSeenAt:  r.LastSeenAt.UTC(),
	}
}

type tokenRow struct {
	Token       string    `db:"token"`
	BusinessID  string    `db:"business_id"`
	NewDeviceID string    `db:"new_device_id"`
	UserEmail   string    `db:"user_email"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
	Used        bool      `db:"used"`
	UsedAt      null.Time `db:"used_at"`
}

func (r tokenRow) toToken() device.OverrideToken {
	return device.OverrideToken{
		Token:       r.Token,
		BusinessID:  r.BusinessID,
		NewDeviceID: r.NewDeviceID,
		UserEmail:   r.UserEmail,
		CreatedAt:   r.CreatedAt.UTC(),
		ExpiresAt:   r.ExpiresAt.UTC(),
		Used:        r.Used,
		UsedAt:      r.UsedAt.Time.UTC(),
	}
}

const (
	deviceColumns = `business_id, device_id, label, user_agent, first_seen_at, last_seen_at`
	tokenColumns  = `token, business_id, new_device_id, user_email, created_at, expires_at, used, used_at`
)

type deviceRepository struct {
	db *sqlx.DB
}

var _ device.Repository = (*deviceRepository)(nil)

func NewDeviceRepository(db *sqlx.DB) *deviceRepository {
	return &deviceRepository{db: db}
}

func (repo *deviceRepository) UpsertDevice(ctx context.Context, d device.Device) (device.Device, error) {
	var row deviceRow
	err := repo.db.GetContext(ctx, &row,
		`INSERT INTO devices (`+deviceColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (business_id, device_id) DO UPDATE SET
			label = COALESCE(NULLIF(EXCLUDED.label, ''), devices.label),
			user_agent = COALESCE(NULLIF(EXCLUDED.user_agent, ''), devices.user_agent),
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING `+deviceColumns,
		d.BusinessID, d.DeviceID, d.Label, d.UserAgent, d.FirstSeenAt, d.LastSeenAt,
	)
	if err != nil {
		return device.Device{}, errors.Wrap(err, "upserting device")
	}
	return row.toDevice(), nil
}

func (repo *deviceRepository) GetDevice(ctx context.Context, businessID, deviceID string) (device.Device, error) {
	var row deviceRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+deviceColumns+` FROM devices WHERE business_id = $1 AND device_id = $2`,
		businessID, deviceID,
	)
	if err != nil {
		return device.Device{}, trapNoRows(err, device.ErrNotFound)
	}
	return row.toDevice(), nil
}

func (repo *deviceRepository) QueryDevices(ctx context.Context, businessID string) ([]device.Device, error) {
	rows := make([]deviceRow, 0)
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+deviceColumns+` FROM devices WHERE business_id = $1 ORDER BY first_seen_at, device_id`,
		businessID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting devices")
	}
	devices := make([]device.Device, 0, len(rows))
	for _, r := range rows {
		devices = append(devices, r.toDevice())
	}
	return devices, nil
}

func (repo *deviceRepository) CountDevices(ctx context.Context, businessID string) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM devices WHERE business_id = $1`, businessID); err != nil {
		return 0, errors.Wrap(err, "counting devices")
	}
	return count, nil
}

func (repo *deviceRepository) DeleteDevicesExcept(ctx context.Context, businessID, keepDeviceID string) (int, error) {
	res, err := repo.db.ExecContext(ctx,
		`DELETE FROM devices WHERE business_id = $1 AND device_id <> $2`, businessID, keepDeviceID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting devices")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading rows affected")
	}
	return int(n), nil
}

func (repo *deviceRepository) CreateOverrideToken(ctx context.Context, tok device.OverrideToken) error {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO device_override_tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tok.Token, tok.BusinessID, tok.NewDeviceID, tok.UserEmail, tok.CreatedAt, tok.ExpiresAt, tok.Used,
		null.NewTime(tok.UsedAt, !tok.UsedAt.IsZero()),
	)
	return errors.Wrap(err, "inserting override token")
}

func (repo *deviceRepository) GetOverrideToken(ctx context.Context, token string) (device.OverrideToken, error) {
	var row tokenRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+tokenColumns+` FROM device_override_tokens WHERE token = $1`, token)
	if err != nil {
		return device.OverrideToken{}, trapNoRows(err, device.ErrTokenNotFound)
	}
	return row.toToken(), nil
}

func (repo *deviceRepository) ClaimOverrideToken(ctx context.Context, token string, at time.Time) (bool, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE device_override_tokens SET used = TRUE, used_at = $2
		WHERE token = $1 AND used = FALSE AND expires_at > $2`,
		token, at,
	)
	if err != nil {
		return false, errors.Wrap(err, "claiming override token")
	}
	return affectedOne(res)
}

func (repo *deviceRepository) ReleaseOverrideToken(ctx context.Context, token string) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE device_override_tokens SET used = FALSE, used_at = NULL WHERE token = $1`, token)
	return errors.Wrap(err, "releasing override token")
}
