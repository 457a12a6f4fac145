//go:build integration

package sqlxrepos_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	"github.com/TTR-x/ttr-gestion-sub002/storage/database"
	sqlxrepos "github.com/TTR-x/ttr-gestion-sub002/storage/database/sqlx"
)

var testDB *sqlx.DB

func TestMain(m *testing.M) {
	if exec.Command("docker", "info").Run() != nil {
		fmt.Println("Docker is not available, skipping integration tests")
		os.Exit(0)
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("ttr_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		log.Fatalf("failed to get connection string: %v", err)
	}
	if testDB, err = sqlx.Open("postgres", connStr); err != nil {
		_ = pgContainer.Terminate(ctx)
		log.Fatalf("failed to open database: %v", err)
	}
	if err = database.Migrate(testDB, "up"); err != nil {
		_ = pgContainer.Terminate(ctx)
		log.Fatalf("failed to run migrations: %v", err)
	}

	code := m.Run()

	_ = testDB.Close()
	_ = pgContainer.Terminate(ctx)
	os.Exit(code)
}

func setupRepos(t *testing.T) *sqlxrepos.Repositories {
	t.Helper()
	for _, table := range []string{"device_override_tokens", "devices", "deletion_history", "entities", "treasury_balances", "members"} {
		_, err := testDB.Exec("TRUNCATE TABLE " + table + " CASCADE")
		require.NoError(t, err)
	}
	return sqlxrepos.NewRepositories(testDB)
}

func TestMemberRepository(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	now := time.Now().UTC().Truncate(time.Microsecond)
	m, err := repos.Members.CreateMember(ctx, member.Member{
		BusinessID: "biz1",
		Name:       "Awa",
		Email:      "awa@ttr.test",
		IsActive:   true,
		Roles:      []string{member.RoleOwner},
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	require.NoError(t, err)
	require.NotEmpty(t, m.ID)

	_, err = repos.Members.CreateMember(ctx, member.Member{BusinessID: "biz1", Email: "awa@ttr.test", CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, member.ErrEmailExists, err)

	assert.Equal(t, member.ErrEmailExists, repos.Members.CheckEmailUniqueness(ctx, "awa@ttr.test"))
	assert.NoError(t, repos.Members.CheckEmailUniqueness(ctx, "awa@ttr.test", m))

	got, err := repos.Members.GetMember(ctx, member.GetFilter{Email: "awa@ttr.test"})
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, []string{member.RoleOwner}, got.Roles)
	assert.True(t, got.LastLogin.IsZero())

	_, err = repos.Members.GetMember(ctx, member.GetFilter{ID: "not-a-uuid"})
	assert.Equal(t, member.ErrNotFound, err)
}

func TestDeviceRepository(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, id := range []string{"devA", "devB"} {
		_, err := repos.Devices.UpsertDevice(ctx, device.Device{BusinessID: "biz1", DeviceID: id, Label: id, FirstSeenAt: now, LastSeenAt: now})
		require.NoError(t, err)
	}
	d, err := repos.Devices.UpsertDevice(ctx, device.Device{BusinessID: "biz1", DeviceID: "devA", FirstSeenAt: now.Add(time.Hour), LastSeenAt: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "devA", d.Label)
	assert.Equal(t, now, d.FirstSeenAt)

	count, err := repos.Devices.CountDevices(ctx, "biz1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	tok := device.OverrideToken{
		Token:       "tok-1",
		BusinessID:  "biz1",
		NewDeviceID: "devB",
		UserEmail:   "awa@ttr.test",
		CreatedAt:   now,
		ExpiresAt:   now.Add(30 * time.Minute),
	}
	require.NoError(t, repos.Devices.CreateOverrideToken(ctx, tok))

	claimed, err := repos.Devices.ClaimOverrideToken(ctx, "tok-1", now.Add(31*time.Minute))
	require.NoError(t, err)
	assert.False(t, claimed, "expired token must not be claimed")

	claimed, err = repos.Devices.ClaimOverrideToken(ctx, "tok-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = repos.Devices.ClaimOverrideToken(ctx, "tok-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, claimed)

	removed, err := repos.Devices.DeleteDevicesExcept(ctx, "biz1", "devB")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, repos.Devices.ReleaseOverrideToken(ctx, "tok-1"))
	got, err := repos.Devices.GetOverrideToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, got.Used)

	_, err = repos.Devices.GetOverrideToken(ctx, "nope")
	assert.Equal(t, device.ErrTokenNotFound, err)
}

func TestLedgerRepositories(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := repos.Archive.UpsertEntity(ctx, ledger.Entity{
		BusinessID: "biz1", WorkspaceID: "ws1", EntityType: ledger.EntityStock, EntityID: "item42",
		Name: "Ciment", UpdatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, repos.Archive.MarkDeleted(ctx, "biz1", ledger.EntityStock, "item42", now))
	assert.Equal(t, ledger.ErrEntityNotFound, repos.Archive.MarkDeleted(ctx, "biz1", ledger.EntityStock, "item42", now))

	synced, err := repos.Archive.UpsertEntity(ctx, ledger.Entity{
		BusinessID: "biz1", WorkspaceID: "ws1", EntityType: ledger.EntityStock, EntityID: "item42",
		Name: "Ciment 50kg", UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.True(t, synced.IsDeleted(), "upsert keeps the deletion state")

	adj := decimal.NewFromInt(-5000)
	e, err := repos.Ledger.CreateEntry(ctx, ledger.Entry{
		BusinessID: "biz1", WorkspaceID: "ws1", EntityType: ledger.EntityStock, EntityID: "item42",
		EntityName: "Ciment", DeletedAt: now, DeletedBy: "Awa", CanRestore: true,
		Calculations: ledger.Calculations{TreasuryAdjustment: &adj},
	})
	require.NoError(t, err)

	found, err := repos.Ledger.FindLatestEntry(ctx, "biz1", "ws1", ledger.EntityStock, "item42", true)
	require.NoError(t, err)
	assert.Equal(t, e.ID, found.ID)
	assert.True(t, adj.Equal(found.Calculations.Adjustment()))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repos.Ledger.ClaimRestore(ctx, e.ID, now.Add(time.Minute), "Awa")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	_, err = repos.Ledger.FindLatestEntry(ctx, "biz1", "ws1", ledger.EntityStock, "item42", true)
	assert.Equal(t, ledger.ErrEntryNotFound, err)

	restored := true
	entries, err := repos.Ledger.QueryEntries(ctx, "biz1", ledger.QueryFilter{Restored: &restored})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Awa", entries[0].RestoredBy)

	bal, err := repos.Treasury.GetBalance(ctx, "biz1", "ws1")
	require.NoError(t, err)
	assert.True(t, bal.Amount.IsZero())
	bal, err = repos.Treasury.AdjustBalance(ctx, "biz1", "ws1", decimal.NewFromInt(5000), now)
	require.NoError(t, err)
	bal, err = repos.Treasury.AdjustBalance(ctx, "biz1", "ws1", decimal.RequireFromString("-1250.5"), now)
	require.NoError(t, err)
	assert.Equal(t, "3749.5", bal.Amount.String())
}
