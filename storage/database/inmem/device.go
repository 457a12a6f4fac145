package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/TTR-x/ttr-gestion-sub002/core/device"
)

type deviceRepository struct {
	db *deviceTable
}

func NewDeviceRepository(db *DB) device.Repository {
	return &deviceRepository{db: db.device}
}

func (repo *deviceRepository) UpsertDevice(_ context.Context, d device.Device) (device.Device, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := deviceKey{d.BusinessID, d.DeviceID}
	if orig, ok := repo.db.table[key]; ok {
		if d.Label != "" {
			orig.Label = d.Label
		}
		if d.UserAgent != "" {
			orig.UserAgent = d.UserAgent
		}
		orig.LastSeenAt = d.LastSeenAt
		return *orig, nil
	}
	repo.db.table[key] = &d
	return d, nil
}

func (repo *deviceRepository) GetDevice(_ context.Context, businessID, deviceID string) (device.Device, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if d, ok := repo.db.table[deviceKey{businessID, deviceID}]; ok {
		return *d, nil
	}
	return device.Device{}, device.ErrNotFound
}

func (repo *deviceRepository) QueryDevices(_ context.Context, businessID string) ([]device.Device, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	devices := make([]device.Device, 0)
	for key, d := range repo.db.table {
		if key.businessID == businessID {
			devices = append(devices, *d)
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].FirstSeenAt.Equal(devices[j].FirstSeenAt) {
			return devices[i].DeviceID < devices[j].DeviceID
		}
		return devices[i].FirstSeenAt.Before(devices[j].FirstSeenAt)
	})
	return devices, nil
}

func (repo *deviceRepository) CountDevices(_ context.Context, businessID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	count := 0
	for key := range repo.db.table {
		if key.businessID == businessID {
			count++
		}
	}
	return count, nil
}

func (repo *deviceRepository) DeleteDevicesExcept(_ context.Context, businessID, keepDeviceID string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	removed := 0
	for key := range repo.db.table {
		if key.businessID == businessID && key.deviceID != keepDeviceID {
			delete(repo.db.table, key)
			removed++
		}
	}
	return removed, nil
}

func (repo *deviceRepository) CreateOverrideToken(_ context.Context, tok device.OverrideToken) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.tokens[tok.Token] = &tok
	return nil
}

func (repo *deviceRepository) GetOverrideToken(_ context.Context, token string) (device.OverrideToken, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tok, ok := repo.db.tokens[token]; ok {
		return *tok, nil
	}
	return device.OverrideToken{}, device.ErrTokenNotFound
}

func (repo *deviceRepository) ClaimOverrideToken(_ context.Context, token string, at time.Time) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	tok, ok := repo.db.tokens[token]
	if !ok || tok.Used || tok.IsExpired(at) {
		return false, nil
	}
	tok.Used = true
	tok.UsedAt = at
	return true, nil
}

func (repo *deviceRepository) ReleaseOverrideToken(_ context.Context, token string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if tok, ok := repo.db.tokens[token]; ok {
		tok.Used = false
		tok.UsedAt = time.Time{}
	}
	return nil
}
