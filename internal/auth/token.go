package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is used when no lifetime is configured.
const DefaultTokenTTL = 24 * time.Hour

const issuer = "sportstats"

// AppClaims defines the custom claims carried by an access token.
// jwt.RegisteredClaims supplies the standard 'exp', 'iat' and 'sub' claims;
// Role drives server-side authorization of admin-only routes.
type AppClaims struct {
	UserID int64  `json:"userID"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the subset of a user that is embedded in a token.
type Identity struct {
	UserID int64
	Name   string
	Email  string
	Role   string
}

// GenerateJWT creates a signed HS256 token for the given identity that
// expires after ttl.
func GenerateJWT(id Identity, secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()

	claims := &AppClaims{
		UserID: id.UserID,
		Name:   id.Name,
		Email:  id.Email,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	// The signature ensures the role claim cannot be altered by the client.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateJWT parses and validates a token string, checking its signature,
// issuer and expiry. If valid, it returns the custom claims.
func ValidateJWT(tokenString string, secret string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Security check: ensure the token's signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())

	if err != nil {
		// Covers malformed tokens, bad signatures and jwt.ErrTokenExpired.
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
