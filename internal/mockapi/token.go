package mockapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yitethio/liyt-driver/internal/apperr"
)

// TokenPair is the credential pair issued on login, registration and
// refresh. The refresh token is opaque and single-use.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type accessClaims struct {
	DriverID int64 `json:"driver_id"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies access tokens and generates opaque refresh
// tokens. Refresh token state lives in the store, not here.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates a token issuer; the secret must not be empty.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("invalid token ttl: access=%s refresh=%s", accessTTL, refreshTTL)
	}
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// Issue mints a fresh pair for the driver.
func (i *Issuer) Issue(driverID int64) (TokenPair, time.Time, error) {
	now := i.now()
	claims := accessClaims{
		DriverID: driverID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", driverID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return TokenPair{}, time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	pair := TokenPair{
		AccessToken:  access,
		RefreshToken: uuid.NewString(),
	}
	return pair, now.Add(i.refreshTTL), nil
}

// Verify parses the access token and returns the driver id it was
// minted for. Expired or malformed tokens fail with
// apperr.ErrUnauthorized.
func (i *Issuer) Verify(access string) (int64, error) {
	var claims accessClaims
	token, err := jwt.ParseWithClaims(access, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: invalid access token", apperr.ErrUnauthorized)
	}
	if claims.DriverID <= 0 {
		return 0, fmt.Errorf("%w: token carries no driver", apperr.ErrUnauthorized)
	}
	return claims.DriverID, nil
}
