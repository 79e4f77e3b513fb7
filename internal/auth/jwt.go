package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims for a logged-in user.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Scope  string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Token lifetimes.
const (
	TokenExpiry       = 7 * 24 * time.Hour
	SignupTokenExpiry = 10 * time.Minute
)

// ScopeSignup marks a short-lived token proving a verified email address,
// accepted only by the registration endpoint.
const ScopeSignup = "signup"

// GenerateToken creates a new access token for a user with a unique JTI.
func GenerateToken(secret string, userID int64, email, role string) (string, error) {
	return generate(secret, Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
	}, TokenExpiry)
}

// GenerateSignupToken creates a signup-scoped token for a verified email.
// It carries no user ID: the account does not exist yet.
func GenerateSignupToken(secret, email string) (string, error) {
	return generate(secret, Claims{
		Email: email,
		Scope: ScopeSignup,
	}, SignupTokenExpiry)
}

func generate(secret string, claims Claims, expiry time.Duration) (string, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", fmt.Errorf("generating JTI: %w", err)
	}

	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// ValidateSignupToken validates a signup-scoped token for the given email.
// A login token or a token for a different address is rejected.
func ValidateSignupToken(secret, tokenStr, email string) error {
	claims, err := ValidateToken(secret, tokenStr)
	if err != nil {
		return err
	}
	if claims.Scope != ScopeSignup {
		return fmt.Errorf("not a signup token")
	}
	if claims.Email != email {
		return fmt.Errorf("signup token issued for a different email")
	}
	return nil
}

// generateJTI creates a random token ID.
func generateJTI() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
