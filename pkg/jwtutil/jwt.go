package jwtutil

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Mohamed-Elfar/LEDGERLY/pkg/config"
)

var (
	signingKey      = []byte("ledgerly-secret-key")
	expirationHours = 24
)

// Initialize configures the signing key and token lifetime from config.
func Initialize(cfg *config.JWTConfig) {
	if cfg.SigningKey != "" {
		signingKey = []byte(cfg.SigningKey)
	}
	if cfg.ExpirationHours > 0 {
		expirationHours = cfg.ExpirationHours
	}
}

// UserClaims represents the JWT claims for user authentication. Org fields are
// present only for an active member; they mirror the UserProfile row at
// issue time.
type UserClaims struct {
	Email   string `json:"email"`
	UserID  uint   `json:"user_id"`
	OrgID   string `json:"org_id,omitempty"`
	OrgName string `json:"org_name,omitempty"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a JWT token without organization context.
func GenerateToken(email string, userID uint) (string, error) {
	return GenerateTokenWithOrg(email, userID, "", "", "")
}

// GenerateTokenWithOrg creates a JWT token carrying the member's organization
// and role.
func GenerateTokenWithOrg(email string, userID uint, orgID, orgName, role string) (string, error) {
	claims := UserClaims{
		Email:   email,
		UserID:  userID,
		OrgID:   orgID,
		OrgName: orgName,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
