package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails verification
var ErrInvalidToken = errors.New("invalid token")

const issuer = "plateai"

// Claims carries the user id in the standard subject claim
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HMAC-signed access tokens
type TokenManager struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	expiry time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager for HS256, HS384 or HS512
func NewTokenManager(secret, algorithm string, expiry time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret required")
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("token expiry must be positive")
	}

	var method *jwt.SigningMethodHMAC
	switch strings.ToUpper(algorithm) {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	return &TokenManager{
		secret: []byte(secret),
		method: method,
		expiry: expiry,
		now:    time.Now,
	}, nil
}

// GenerateToken returns a signed token whose subject is the user id
func (tm *TokenManager) GenerateToken(userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("user id required")
	}
	now := tm.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(tm.method, claims)
	return token.SignedString(tm.secret)
}

// ValidateToken verifies signature, algorithm and expiry and returns the
// user id from the subject claim.
func (tm *TokenManager) ValidateToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{tm.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return userID, nil
}

// Expiry returns the lifetime of issued tokens
func (tm *TokenManager) Expiry() time.Duration {
	return tm.expiry
}

// ExtractToken pulls the token out of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
