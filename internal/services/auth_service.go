package services

import (
	"context"
	"strings"
	"time"

	"hoa-ledger/config"
	ledger_errors "hoa-ledger/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// AuthService verifies the bearer tokens issued by the community portal. The
// ledger trusts the identity they carry and stores no accounts of its own.
type AuthService struct {
	jwtSecret []byte
	accessTTL time.Duration
	issuer    string
}

func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{
		jwtSecret: []byte(cfg.JWTSecret),
		accessTTL: time.Duration(cfg.JWTExpiryMin) * time.Minute,
		issuer:    cfg.Issuer,
	}
}

type AccessClaims struct {
	VoterID string `json:"sub"`
	Role    Role   `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an access token. Used by ledgerctl and tests; production
// tokens come from the portal with the same secret.
func (s *AuthService) IssueToken(voterID string, role Role) (string, time.Time, error) {
	if strings.TrimSpace(voterID) == "" || !role.Valid() {
		return "", time.Time{}, ledger_errors.ErrInvalidInput
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.accessTTL)
	claims := AccessClaims{
		VoterID: voterID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, ledger_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ledger_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return AccessClaims{}, ledger_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.VoterID == "" || !claims.Role.Valid() {
		return AccessClaims{}, ledger_errors.ErrUnauthorized
	}

	return *claims, nil
}

type ctxKey string

var voterIDKey ctxKey = "voter_id"
var roleKey ctxKey = "role"

func WithVoterContext(ctx context.Context, voterID string, role Role) context.Context {
	ctx = context.WithValue(ctx, voterIDKey, voterID)
	ctx = context.WithValue(ctx, roleKey, role)
	return ctx
}

// VoterIDFromContext returns the authenticated voter, if the request carried one.
func VoterIDFromContext(ctx context.Context) (string, bool) {
	voterID, ok := ctx.Value(voterIDKey).(string)
	return voterID, ok && voterID != ""
}

func RoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(roleKey).(Role)
	return role, ok
}

func IsAdmin(ctx context.Context) bool {
	role, ok := RoleFromContext(ctx)
	return ok && role == RoleAdmin
}
