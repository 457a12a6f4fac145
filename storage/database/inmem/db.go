package inmemdb

import (
	"sync"

	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	"github.com/TTR-x/ttr-gestion-sub002/core/treasury"
)

type (
	// DB is a process-local store used by tests and the "memory" database engine.
	DB struct {
		member   *memberTable
		device   *deviceTable
		ledger   *ledgerTable
		entity   *entityTable
		treasury *treasuryTable
	}

	memberTable struct {
		sync.RWMutex
		table map[string]*member.Member
	}

	deviceKey struct{ businessID, deviceID string }

	deviceTable struct {
		sync.RWMutex
		table  map[deviceKey]*device.Device
		tokens map[string]*device.OverrideToken
	}

	ledgerTable struct {
		sync.RWMutex
		table map[string]*ledger.Entry
	}

	entityKey struct {
		businessID string
		entityType ledger.EntityType
		entityID   string
	}

	entityTable struct {
		sync.RWMutex
		table map[entityKey]*ledger.Entity
	}

	balanceKey struct{ businessID, workspaceID string }

	treasuryTable struct {
		sync.RWMutex
		table map[balanceKey]*treasury.Balance
	}
)

func Open() *DB {
	return &DB{
		member: &memberTable{table: make(map[string]*member.Member)},
		device: &deviceTable{
			table:  make(map[deviceKey]*device.Device),
			tokens: make(map[string]*device.OverrideToken),
		},
		ledger:   &ledgerTable{table: make(map[string]*ledger.Entry)},
		entity:   &entityTable{table: make(map[entityKey]*ledger.Entity)},
		treasury: &treasuryTable{table: make(map[balanceKey]*treasury.Balance)},
	}
}

// Repositories groups the in-memory implementations of every domain repository.
type Repositories struct {
	Members  member.Repository
	Devices  device.Repository
	Ledger   ledger.Repository
	Archive  ledger.Archive
	Treasury treasury.Repository
}

func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Members:  NewMemberRepository(db),
		Devices:  NewDeviceRepository(db),
		Ledger:   NewLedgerRepository(db),
		Archive:  NewArchiveRepository(db),
		Treasury: NewTreasuryRepository(db),
	}
}
