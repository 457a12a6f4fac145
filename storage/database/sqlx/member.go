package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

type memberRow struct {
	ID           string         `db:"id"`
	BusinessID   string         `db:"business_id"`
	Name         string         `db:"name"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r memberRow) toMember() member.Member {
	return member.Member{
		ID:           r.ID,
		BusinessID:   r.BusinessID,
		Name:         r.Name,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func newMemberRow(m member.Member) memberRow {
	roles := m.Roles
	if roles == nil {
		roles = []string{}
	}
	return memberRow{
		ID:           m.ID,
		BusinessID:   m.BusinessID,
		Name:         m.Name,
		Email:        m.Email,
		IsActive:     m.IsActive,
		Roles:        pq.StringArray(roles),
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		LastLogin:    null.NewTime(m.LastLogin, !m.LastLogin.IsZero()),
	}
}

const memberColumns = `id, business_id, name, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type memberRepository struct {
	db *sqlx.DB
}

var _ member.Repository = (*memberRepository)(nil)

func NewMemberRepository(db *sqlx.DB) *memberRepository {
	return &memberRepository{db: db}
}

func (repo *memberRepository) CheckEmailUniqueness(ctx context.Context, email string, excluded ...member.Member) error {
	ids := make([]string, 0, len(excluded))
	for _, m := range excluded {
		ids = append(ids, m.ID)
	}
	var count int
	err := repo.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM members WHERE email = $1 AND NOT (id::text = ANY($2))`,
		email, pq.StringArray(ids),
	)
	if err != nil {
		return errors.Wrap(err, "counting members by email")
	}
	if count > 0 {
		return member.ErrEmailExists
	}
	return nil
}

func (repo *memberRepository) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO members (`+memberColumns+`)
		VALUES (:id, :business_id, :name, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		newMemberRow(m),
	)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return member.Member{}, member.ErrEmailExists
		}
		return member.Member{}, errors.Wrap(err, "inserting member")
	}
	return m, nil
}

func (repo *memberRepository) GetMember(ctx context.Context, filter member.GetFilter) (member.Member, error) {
	var (
		row   memberRow
		query = `SELECT ` + memberColumns + ` FROM members WHERE `
		arg   string
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return member.Member{}, member.ErrNotFound
		}
		query += `id = $1`
		arg = filter.ID
	case filter.Email != "":
		query += `email = $1`
		arg = filter.Email
	default:
		return member.Member{}, member.ErrNotFound
	}
	if err := repo.db.GetContext(ctx, &row, query, arg); err != nil {
		return member.Member{}, trapNoRows(err, member.ErrNotFound)
	}
	return row.toMember(), nil
}

func (repo *memberRepository) QueryMembers(ctx context.Context, businessID string) ([]member.Member, error) {
	rows := make([]memberRow, 0)
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+memberColumns+` FROM members WHERE business_id = $1 ORDER BY created_at`, businessID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting members")
	}
	members := make([]member.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.toMember())
	}
	return members, nil
}

func (repo *memberRepository) UpdateMember(ctx context.Context, m member.Member) (member.Member, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE members SET name = :name, email = :email, is_active = :is_active, roles = :roles,
			password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		newMemberRow(m),
	)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "updating member")
	}
	if ok, err := affectedOne(res); err != nil {
		return member.Member{}, err
	} else if !ok {
		return member.Member{}, member.ErrNotFound
	}
	return m, nil
}
