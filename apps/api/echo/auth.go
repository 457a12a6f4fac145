package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

const (
	contextTokenKey  = "memberToken"
	contextMemberKey = "member"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	BusinessID string   `json:"business_id"`
	Name       string   `json:"name,omitempty"`
	Email      string   `json:"email,omitempty"`
	IsAdmin    bool     `json:"is_admin,omitempty"`
	Roles      []string `json:"roles,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func GetMemberClaims(m member.Member, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   m.ID,
			ExpiresAt: now.Add(conf.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		BusinessID: m.BusinessID,
		Name:       m.Name,
		Email:      m.Email,
		IsAdmin:    m.IsAdmin(),
		Roles:      m.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the member Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextMember loads the authenticated member once per request.
func getContextMember(ctx echo.Context, svc member.Service) (member.Member, error) {
	if m, ok := ctx.Get(contextMemberKey).(member.Member); ok {
		return m, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "getting context claims")
	}
	m, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if err == member.ErrNotFound {
			return member.Member{}, errUnauthorized
		}
		return member.Member{}, errors.Wrap(err, "finding member by ID")
	}
	if !m.IsActive {
		return member.Member{}, errAccountDeactivated
	}
	ctx.Set(contextMemberKey, m)
	return m, nil
}
