package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	"github.com/TTR-x/ttr-gestion-sub002/core/treasury"
)

// Repositories groups the postgres implementations of every domain repository.
type Repositories struct {
	Members  member.Repository
	Devices  device.Repository
	Ledger   ledger.Repository
	Archive  ledger.Archive
	Treasury treasury.Repository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Members:  NewMemberRepository(db),
		Devices:  NewDeviceRepository(db),
		Ledger:   NewLedgerRepository(db),
		Archive:  NewArchiveRepository(db),
		Treasury: NewTreasuryRepository(db),
	}
}

// trapNoRows maps sql.ErrNoRows to notFound.
func trapNoRows(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

// affectedOne reports whether res changed exactly one row.
func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "reading rows affected")
	}
	return n == 1, nil
}
