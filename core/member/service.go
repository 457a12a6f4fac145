package member

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/TTR-x/ttr-gestion-sub002/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = errors.New("member not found")
	ErrEmailExists        = errors.New("a member with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excluded ...Member) error
		CreateMember(ctx context.Context, m Member) (Member, error)
		GetMember(ctx context.Context, filter GetFilter) (Member, error)
		QueryMembers(ctx context.Context, businessID string) ([]Member, error)
		UpdateMember(ctx context.Context, m Member) (Member, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email string, excluded ...Member) error
		Create(ctx context.Context, nm NewMember) (Member, error)
		GetByID(ctx context.Context, id string) (Member, error)
		GetByEmail(ctx context.Context, email string) (Member, error)
		Query(ctx context.Context, businessID string) ([]Member, error)
		Authenticate(ctx context.Context, email, pwd string) (Member, error)
		SetPassword(ctx context.Context, m Member, pwd string) (Member, error)
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string, excluded ...Member) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excluded...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nm NewMember) (Member, error) {
	roles := nm.Roles
	if len(roles) == 0 {
		roles = []string{RoleStaff}
	}
	now := NowFunc().UTC()
	m := Member{
		BusinessID: nm.BusinessID,
		Name:       nm.Name,
		Email:      nm.Email,
		IsActive:   true,
		Roles:      roles,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.SetPassword(nm.Password); err != nil {
		return Member{}, pkgerrors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateMember(ctx, m)
}

func (svc *service) GetByID(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMember(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Member, error) {
	return svc.repo.GetMember(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Query(ctx context.Context, businessID string) ([]Member, error) {
	return svc.repo.QueryMembers(ctx, businessID)
}

// Authenticate checks the credentials and records the login time.
func (svc *service) Authenticate(ctx context.Context, email, pwd string) (Member, error) {
	m, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return Member{}, ErrInvalidCredentials
		}
		return Member{}, pkgerrors.Wrap(err, "finding member by email")
	}
	if err = m.CheckPassword(pwd); err != nil {
		return Member{}, ErrInvalidCredentials
	}
	if !m.IsActive {
		return Member{}, ErrAccountDeactivated
	}

	m.LastLogin = NowFunc().UTC()
	m, err = svc.repo.UpdateMember(ctx, m)
	if err != nil {
		return Member{}, pkgerrors.Wrap(err, "setting last login")
	}
	return m, nil
}

func (svc *service) SetPassword(ctx context.Context, m Member, pwd string) (Member, error) {
	if tag := passwordPolicyViolation(pwd, m.Name, m.Email); tag != "" {
		return Member{}, core.NewValidationError(nil, core.FieldError{Field: "password", Error: passwordPolicyText(tag)})
	}
	if err := m.SetPassword(pwd); err != nil {
		return Member{}, pkgerrors.Wrap(err, "hashing password")
	}
	m.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateMember(ctx, m)
}

func passwordPolicyText(tag string) string {
	switch tag {
	case pwdMinLenTag:
		return pwdMinLenText
	case pwdNoSpaceTag:
		return pwdNoSpaceText
	case pwdNotAllNumTag:
		return pwdNotAllNumText
	case pwdComplexityTag:
		return pwdComplexityText
	case pwdAttrSimTag:
		return pwdAttrSimText
	}
	return "invalid password"
}
