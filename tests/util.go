package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

func CreateMember(
	t *testing.T,
	repo member.Repository,
	businessID, name, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) member.Member {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	m := member.Member{
		BusinessID: businessID,
		Name:       name,
		Email:      email,
		Roles:      roles,
		IsActive:   isActive,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	}
	if pwd != "" {
		if err := m.SetPassword(pwd); err != nil {
			t.Fatalf("CreateMember() failed: %v", err)
		}
	}
	m, err := repo.CreateMember(context.Background(), m)
	if err != nil {
		t.Fatalf("CreateMember() failed: %v", err)
	}
	return m
}

func RegisterDevice(t *testing.T, repo device.Repository, businessID, deviceID, label string, seenAt ...time.Time) device.Device {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(seenAt) > 0 {
		tstamp = seenAt[0].UTC()
	}
	d, err := repo.UpsertDevice(context.Background(), device.Device{
		BusinessID:  businessID,
		DeviceID:    deviceID,
		Label:       label,
		FirstSeenAt: tstamp,
		LastSeenAt:  tstamp,
	})
	if err != nil {
		t.Fatalf("RegisterDevice() failed: %v", err)
	}
	return d
}

func CreateEntity(t *testing.T, archive ledger.Archive, businessID, workspaceID string, et ledger.EntityType, entityID, name string) ledger.Entity {
	t.Helper()
	e, err := archive.UpsertEntity(context.Background(), ledger.Entity{
		BusinessID:  businessID,
		WorkspaceID: workspaceID,
		EntityType:  et,
		EntityID:    entityID,
		Name:        name,
		Payload:     []byte(`{}`),
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateEntity() failed: %v", err)
	}
	return e
}
