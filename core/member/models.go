package member

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/TTR-x/ttr-gestion-sub002/core"
)

// Roles
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

var (
	AdminRoles = []string{RoleOwner, RoleAdmin}
	AllRoles   = []string{RoleOwner, RoleAdmin, RoleStaff}

	rolePriorities = map[string]int{
		RoleOwner: 30,
		RoleAdmin: 20,
		RoleStaff: 10,
	}

	Roles = []Role{
		{Name: "Staff", Value: RoleStaff},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Owner", Value: RoleOwner},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Member is a person working for a business.
type Member struct {
	ID           string    `json:"id"`
	BusinessID   string    `json:"business_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (m *Member) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	return nil
}

func (m *Member) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(m.PasswordHash, []byte(pwd))
}

func (m *Member) HasRole(roles ...string) bool {
	for _, have := range m.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether m may run administrative actions (restore, device override) on its business.
func (m *Member) IsAdmin() bool {
	return m.HasRole(AdminRoles...)
}

// NewMember contains information needed to create a new Member.
type NewMember struct {
	BusinessID      string   `json:"business_id" validate:"required,notblank"`
	Name            string   `json:"name" validate:"required,notblank"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nm *NewMember) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nm.BusinessID = core.CleanString(nm.BusinessID)
	nm.Name = core.CleanString(nm.Name)
	nm.Email = core.CleanString(nm.Email, true /* lower */)

	if err := validate.Struct(nm); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nm.Email)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (lr LoginRequest) Validate(validate *validator.Validate) error { return validate.Struct(lr) }

type GetFilter struct {
	ID    string
	Email string
}
