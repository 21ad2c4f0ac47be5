package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	"brick/pkg/requestcontext"
)

// Claims are the bearer token claims. Subject carries the principal.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTProvider resolves the caller from an HS256 bearer token in the context.
type JWTProvider struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTProvider(signingKey, issuer, audience string) *JWTProvider {
	return &JWTProvider{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Issue signs a token for principal. Used by operators and tests.
func (p *JWTProvider) Issue(principal domain.Principal, expiresIn time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(principal),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    p.issuer,
			Audience:  []string{p.audience},
			ID:        uuid.NewString(),
		},
	})
	return tok.SignedString(p.signingKey)
}

func (p *JWTProvider) CallerPrincipal(ctx context.Context) (domain.Principal, error) {
	raw := requestcontext.BearerToken(ctx)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "missing bearer token")
	}
	claims, err := p.validate(raw)
	if err != nil {
		return "", err
	}
	principal, err := domain.ParsePrincipal(claims.Subject)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token subject")
	}
	return principal, nil
}

func (p *JWTProvider) validate(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return p.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
