// Package directory resolves presented credentials to principals. The
// realtime fan-out trusts it to gate every websocket attach.
package directory

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// Config holds the token verification settings.
type Config struct {
	// Secret is the HMAC signing key shared with the credential issuer.
	Secret string `json:"secret"`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `json:"issuer"`
}

// claims is the token payload the issuer mints for pipeline access.
type claims struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status"`
	jwt.RegisteredClaims
}

// JWTDirectory verifies HS256 bearer tokens and maps their claims onto
// principals. It holds no user state of its own; suspended accounts are
// rejected downstream by the fan-out based on the status claim.
type JWTDirectory struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTDirectory builds a verifier for the shared signing key.
func NewJWTDirectory(cfg Config) (*JWTDirectory, error) {
	if cfg.Secret == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "JWTDirectory", "NewJWTDirectory", "validate secret")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &JWTDirectory{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

// VerifyCredential parses and validates the token, returning the principal
// it asserts. Any signature, expiry, or shape problem maps to
// ErrUnauthorized so callers never leak verification detail to clients.
// The context is unused here; directory backends that consult external
// state honor it.
func (d *JWTDirectory) VerifyCredential(_ context.Context, token string) (types.Principal, error) {
	var c claims
	parsed, err := d.parser.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return d.secret, nil
	})
	if err != nil || !parsed.Valid {
		return types.Principal{}, errors.WrapInvalid(errors.ErrUnauthorized, "JWTDirectory", "VerifyCredential", "parse token")
	}
	if c.Subject == "" {
		return types.Principal{}, errors.WrapInvalid(
			fmt.Errorf("%w: token has no subject", errors.ErrUnauthorized),
			"JWTDirectory", "VerifyCredential", "validate claims")
	}

	role := types.RoleUser
	if types.Role(c.Role) == types.RoleAdmin {
		role = types.RoleAdmin
	}
	status := types.UserActive
	if types.UserStatus(c.Status) == types.UserSuspended {
		status = types.UserSuspended
	}

	return types.Principal{
		ID:     c.Subject,
		Name:   c.Name,
		Role:   role,
		Status: status,
	}, nil
}
