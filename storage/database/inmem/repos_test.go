package inmemdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

func TestMemberRepository_EmailUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemberRepository(Open())

	m, err := repo.CreateMember(ctx, member.Member{BusinessID: "biz1", Email: "awa@ttr.test"})
	require.NoError(t, err)

	_, err = repo.CreateMember(ctx, member.Member{BusinessID: "biz2", Email: "awa@ttr.test"})
	assert.Equal(t, member.ErrEmailExists, err)
	assert.Equal(t, member.ErrEmailExists, repo.CheckEmailUniqueness(ctx, "awa@ttr.test"))
	assert.NoError(t, repo.CheckEmailUniqueness(ctx, "awa@ttr.test", m))

	_, err = repo.UpdateMember(ctx, member.Member{ID: "missing"})
	assert.Equal(t, member.ErrNotFound, err)
}

func TestDeviceRepository_ClaimIsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(Open())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateOverrideToken(ctx, device.OverrideToken{
		Token:     "tok",
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}))

	ok, err := repo.ClaimOverrideToken(ctx, "tok", now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "claim at expiry instant")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := repo.ClaimOverrideToken(ctx, "tok", now.Add(time.Minute)); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	require.NoError(t, repo.ReleaseOverrideToken(ctx, "tok"))
	tok, err := repo.GetOverrideToken(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, tok.Used)
	assert.True(t, tok.UsedAt.IsZero())
}

func TestDeviceRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(Open())
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.UpsertDevice(ctx, device.Device{BusinessID: "biz1", DeviceID: "devA", Label: "Caisse", FirstSeenAt: t0, LastSeenAt: t0})
	require.NoError(t, err)
	d, err := repo.UpsertDevice(ctx, device.Device{BusinessID: "biz1", DeviceID: "devA", FirstSeenAt: t0.Add(time.Hour), LastSeenAt: t0.Add(time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, "Caisse", d.Label)
	assert.Equal(t, t0, d.FirstSeenAt)
	assert.Equal(t, t0.Add(time.Hour), d.LastSeenAt)

	_, err = repo.UpsertDevice(ctx, device.Device{BusinessID: "biz2", DeviceID: "devA", FirstSeenAt: t0, LastSeenAt: t0})
	require.NoError(t, err)
	count, err := repo.CountDevices(ctx, "biz1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLedgerRepository_QueryOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(Open())
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, name := range []string{"b", "a", "c"} {
		_, err := repo.CreateEntry(ctx, ledger.Entry{
			BusinessID:  "biz1",
			WorkspaceID: "ws1",
			EntityType:  ledger.EntityClient,
			EntityID:    name,
			EntityName:  name,
			DeletedAt:   t0.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := repo.CreateEntry(ctx, ledger.Entry{BusinessID: "biz2", EntityType: ledger.EntityClient, EntityName: "z"})
	require.NoError(t, err)

	names := func(entries []ledger.Entry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.EntityName)
		}
		return out
	}

	entries, err := repo.QueryEntries(ctx, "biz1", ledger.QueryFilter{}, core.DBOrdering{Field: "deleted_at"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, names(entries))

	entries, err = repo.QueryEntries(ctx, "biz1", ledger.QueryFilter{}, core.DBOrdering{Field: "entity_name", Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(entries))
}

func TestLedgerRepository_FindLatestEntry(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(Open())
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := repo.CreateEntry(ctx, ledger.Entry{BusinessID: "biz1", WorkspaceID: "ws1", EntityType: ledger.EntityStock, EntityID: "item42", DeletedAt: t0})
	require.NoError(t, err)
	second, err := repo.CreateEntry(ctx, ledger.Entry{BusinessID: "biz1", WorkspaceID: "ws1", EntityType: ledger.EntityStock, EntityID: "item42", DeletedAt: t0.Add(time.Hour)})
	require.NoError(t, err)

	e, err := repo.FindLatestEntry(ctx, "biz1", "ws1", ledger.EntityStock, "item42", true)
	require.NoError(t, err)
	assert.Equal(t, second.ID, e.ID)

	ok, err := repo.ClaimRestore(ctx, second.ID, t0.Add(2*time.Hour), "Awa")
	require.NoError(t, err)
	require.True(t, ok)

	e, err = repo.FindLatestEntry(ctx, "biz1", "ws1", ledger.EntityStock, "item42", true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, e.ID)

	e, err = repo.FindLatestEntry(ctx, "biz1", "ws1", ledger.EntityStock, "item42", false)
	require.NoError(t, err)
	assert.Equal(t, second.ID, e.ID)

	_, err = repo.FindLatestEntry(ctx, "biz1", "ws2", ledger.EntityStock, "item42", false)
	assert.Equal(t, ledger.ErrEntryNotFound, err)
}

func TestArchiveRepository_MarkDeleted(t *testing.T) {
	ctx := context.Background()
	repo := NewArchiveRepository(Open())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, ledger.ErrEntityNotFound, repo.MarkDeleted(ctx, "biz1", ledger.EntityStock, "item42", now))

	_, err := repo.UpsertEntity(ctx, ledger.Entity{BusinessID: "biz1", EntityType: ledger.EntityStock, EntityID: "item42"})
	require.NoError(t, err)
	require.NoError(t, repo.MarkDeleted(ctx, "biz1", ledger.EntityStock, "item42", now))
	assert.Equal(t, ledger.ErrEntityNotFound, repo.MarkDeleted(ctx, "biz1", ledger.EntityStock, "item42", now))

	// upserting keeps the deletion state
	_, err = repo.UpsertEntity(ctx, ledger.Entity{BusinessID: "biz1", EntityType: ledger.EntityStock, EntityID: "item42", Name: "Ciment"})
	require.NoError(t, err)
	e, err := repo.GetEntity(ctx, "biz1", ledger.EntityStock, "item42")
	require.NoError(t, err)
	assert.True(t, e.IsDeleted())
	assert.Equal(t, "Ciment", e.Name)

	require.NoError(t, repo.MarkActive(ctx, "biz1", ledger.EntityStock, "item42", now))
	e, err = repo.GetEntity(ctx, "biz1", ledger.EntityStock, "item42")
	require.NoError(t, err)
	assert.False(t, e.IsDeleted())
}

func TestTreasuryRepository_AdjustBalance(t *testing.T) {
	ctx := context.Background()
	repo := NewTreasuryRepository(Open())
	now := time.Now().UTC()

	b, err := repo.GetBalance(ctx, "biz1", "ws1")
	require.NoError(t, err)
	assert.True(t, b.Amount.IsZero())

	_, err = repo.AdjustBalance(ctx, "biz1", "ws1", decimal.NewFromInt(5000), now)
	require.NoError(t, err)
	b, err = repo.AdjustBalance(ctx, "biz1", "ws1", decimal.RequireFromString("-0.25"), now)
	require.NoError(t, err)
	assert.Equal(t, "4999.75", b.Amount.String())
}
