// Package localcache is the device-resident store: mirrored business records plus the
// device counter written by the sync collaborator.
package localcache

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	appfs "github.com/TTR-x/ttr-gestion-sub002/fs"
)

const (
	driverName          = "sqlite"
	knownDeviceCountKey = "known_device_count"
)

var ErrNotFound = errors.New("record not found")

// Record is a mirrored copy of a business entity.
type Record struct {
	EntityType  string    `db:"entity_type" json:"entityType"`
	EntityID    string    `db:"entity_id" json:"entityId"`
	BusinessID  string    `db:"business_id" json:"businessId"`
	WorkspaceID string    `db:"workspace_id" json:"workspaceId"`
	Payload     []byte    `db:"payload" json:"payload"`
	Version     int64     `db:"version" json:"version"`
	UpdatedAt   time.Time `db:"-" json:"-"`
	DeviceID    string    `db:"device_id" json:"deviceId"`
}

// newerThan reports whether r wins over other under last-write-wins:
// higher Version, then later UpdatedAt, then higher DeviceID.
func (r Record) newerThan(other Record) bool {
	if r.Version != other.Version {
		return r.Version > other.Version
	}
	if !r.UpdatedAt.Equal(other.UpdatedAt) {
		return r.UpdatedAt.After(other.UpdatedAt)
	}
	return r.DeviceID > other.DeviceID
}

type recordRow struct {
	Record
	UpdatedAtMs int64 `db:"updated_at"`
}

func (row recordRow) toRecord() Record {
	r := row.Record
	r.UpdatedAt = core.FromEpochMillis(row.UpdatedAtMs)
	return r
}

const recordColumns = `entity_type, entity_id, business_id, workspace_id, payload, version, updated_at, device_id`

type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the cache file at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, errors.Wrap(err, "opening local cache")
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "pinging local cache")
	}
	if err = migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sqlx.DB) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Up(db.DB, appfs.SQLiteMigrationsDir); err != nil {
		return errors.Wrap(err, "migrating local cache")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, r Record) error {
	return put(ctx, s.db, r)
}

func put(ctx context.Context, ex sqlx.ExecerContext, r Record) error {
	payload := r.Payload
	if payload == nil {
		payload = []byte{}
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			business_id = excluded.business_id,
			workspace_id = excluded.workspace_id,
			payload = excluded.payload,
			version = excluded.version,
			updated_at = excluded.updated_at,
			device_id = excluded.device_id`,
		r.EntityType, r.EntityID, r.BusinessID, r.WorkspaceID, payload, r.Version,
		core.EpochMillis(r.UpdatedAt), r.DeviceID,
	)
	return errors.Wrap(err, "writing record")
}

func (s *Store) Get(ctx context.Context, entityType, entityID string) (Record, error) {
	return get(ctx, s.db, entityType, entityID)
}

func get(ctx context.Context, q sqlx.QueryerContext, entityType, entityID string) (Record, error) {
	var row recordRow
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT `+recordColumns+` FROM records WHERE entity_type = ? AND entity_id = ?`, entityType, entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, errors.Wrap(err, "reading record")
	}
	return row.toRecord(), nil
}

func (s *Store) Delete(ctx context.Context, entityType, entityID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE entity_type = ? AND entity_id = ?`, entityType, entityID)
	return errors.Wrap(err, "deleting record")
}

// List returns the records of a workspace, all types if entityType is empty.
func (s *Store) List(ctx context.Context, workspaceID, entityType string) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE workspace_id = ?`
	args := []interface{}{workspaceID}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY entity_type, entity_id`

	rows := make([]recordRow, 0)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "listing records")
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

// Merge applies a remote copy under last-write-wins and reports whether the local copy changed.
func (s *Store) Merge(ctx context.Context, remote Record) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "starting merge")
	}
	defer func() { _ = tx.Rollback() }()

	local, err := get(ctx, tx, remote.EntityType, remote.EntityID)
	switch {
	case err == ErrNotFound:
	case err != nil:
		return false, err
	case !remote.newerThan(local):
		return false, nil
	}

	if err = put(ctx, tx, remote); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, "committing merge")
	}
	return true, nil
}

// KnownDeviceCount is the device count last written by the sync collaborator; 0 if never written.
func (s *Store) KnownDeviceCount(ctx context.Context) (int, error) {
	var val string
	err := s.db.GetContext(ctx, &val, `SELECT value FROM kv WHERE key = ?`, knownDeviceCountKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "reading known device count")
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing known device count %q", val)
	}
	return n, nil
}

func (s *Store) SetKnownDeviceCount(ctx context.Context, n int) error {
	if n < 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "count", Error: "must be 0 or greater"})
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		knownDeviceCountKey, strconv.Itoa(n))
	return errors.Wrap(err, "writing known device count")
}
