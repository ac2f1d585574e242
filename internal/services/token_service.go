package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chat-service/internal/repositories"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims is the validated identity carried by a bearer token.
type Claims struct {
	UserID string
	JTI    string
}

// TokenService issues and validates HS256 bearer tokens. Every issued token
// carries a jti; logout revokes the jti so the token dies before its expiry.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	tokens repositories.TokenRepository
}

func NewTokenService(secret string, ttl time.Duration, tokens repositories.TokenRepository) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, tokens: tokens}
}

func (s *TokenService) Issue(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"user_id": userID,
		"jti":     uuid.NewString(),
		"iat":     now.Unix(),
		"exp":     now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	userID, ok := mapClaims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrTokenInvalid
	}
	jti, ok := mapClaims["jti"].(string)
	if !ok || jti == "" {
		return nil, ErrTokenInvalid
	}

	revoked, err := s.tokens.IsRevoked(ctx, jti)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return &Claims{UserID: userID, JTI: jti}, nil
}

func (s *TokenService) Revoke(ctx context.Context, jti string) error {
	return s.tokens.Revoke(ctx, jti)
}
