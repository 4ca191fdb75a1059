package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrResetTokenInvalid = errors.New("invalid or expired reset token")

// RefreshStore keeps the single valid refresh token per user in redis, so
// rotation invalidates the previous one.
type RefreshStore struct {
	RDB *redis.Client
}

func refreshKey(userID string) string {
	return fmt.Sprintf("refresh_token:%s", userID)
}

func (s *RefreshStore) Save(ctx context.Context, userID, token string, ttl time.Duration) error {
	return s.RDB.Set(ctx, refreshKey(userID), token, ttl).Err()
}

// Matches reports whether the presented token is the stored one.
func (s *RefreshStore) Matches(ctx context.Context, userID, token string) (bool, error) {
	stored, err := s.RDB.Get(ctx, refreshKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == token, nil
}

func (s *RefreshStore) Delete(ctx context.Context, userID string) error {
	return s.RDB.Del(ctx, refreshKey(userID)).Err()
}

// ResetStore holds opaque password-reset tokens mapped to user ids.
type ResetStore struct {
	RDB *redis.Client
	TTL time.Duration
}

func resetKey(token string) string {
	return fmt.Sprintf("password_reset:%s", token)
}

// Create mints a random token bound to the user for the configured TTL.
func (s *ResetStore) Create(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	if err := s.RDB.Set(ctx, resetKey(token), userID, s.TTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume resolves the token to a user id and deletes it, making tokens
// single-use.
func (s *ResetStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.RDB.GetDel(ctx, resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrResetTokenInvalid
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}
