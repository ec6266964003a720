package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovialab/cliniguard-server/internal/model"
)

// Claims represents JWT claims with token type and account identity.
type Claims struct {
	jwt.RegisteredClaims
	AccountID int64      `json:"account_id"`
	Role      model.Role `json:"role,omitempty"`
	Email     string     `json:"email,omitempty"`
	TokenType string     `json:"typ"`
}

// JWT implements model.TokenManager backed by symmetric HMAC. Tokens carry
// no server-side revocation list; signature and expiry are the whole check.
type JWT struct {
	secretKey string
}

// NewJWT creates a new JWT token manager with the provided secret key.
func NewJWT(secretKey string) model.TokenManager {
	return &JWT{secretKey: secretKey}
}

const (
	sessionTTL    = 12 * time.Hour
	challengeTTL  = 10 * time.Minute
	typeSession   = "session"
	typeChallenge = "challenge"
)

// GenerateSessionToken creates a fully authenticated session token.
func (j *JWT) GenerateSessionToken(accountID int64, role model.Role, email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
		AccountID: accountID,
		Role:      role,
		Email:     email,
		TokenType: typeSession,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// GenerateChallengeToken creates a short-lived token bound to a pending
// second-factor verification.
func (j *JWT) GenerateChallengeToken(accountID int64) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(challengeTTL)),
		},
		AccountID: accountID,
		TokenType: typeChallenge,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge token: %w", err)
	}

	return tokenString, nil
}

// ParseSessionToken validates a session token and extracts its identity.
func (j *JWT) ParseSessionToken(tokenString string) (model.TokenIdentity, error) {
	claims, err := j.parse(tokenString)
	if err != nil {
		return model.TokenIdentity{}, err
	}
	if claims.TokenType != typeSession {
		return model.TokenIdentity{}, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	return model.TokenIdentity{
		AccountID: claims.AccountID,
		Role:      claims.Role,
		Email:     claims.Email,
	}, nil
}

// ParseChallengeToken validates a challenge token and extracts the account ID.
func (j *JWT) ParseChallengeToken(tokenString string) (int64, error) {
	claims, err := j.parse(tokenString)
	if err != nil {
		return 0, err
	}
	if claims.TokenType != typeChallenge {
		return 0, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	return claims.AccountID, nil
}

func (j *JWT) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	return claims, nil
}
