package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRefreshPrefix = "refresh_used"

// RefreshTokenStore records refresh token ids that have already been spent.
type RefreshTokenStore struct {
	client *redis.Client
	prefix string
}

func NewRefreshTokenStore(client *redis.Client, keyPrefix string) *RefreshTokenStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRefreshPrefix
	}
	return &RefreshTokenStore{client: client, prefix: prefix}
}

// Claim marks jti as spent for ttl. It returns false when the jti was already spent.
func (s *RefreshTokenStore) Claim(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, errors.New("jti must not be empty")
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := s.client.SetNX(ctx, s.key(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx refresh jti: %w", err)
	}
	return ok, nil
}

func (s *RefreshTokenStore) key(jti string) string {
	return s.prefix + ":" + strings.TrimSpace(jti)
}
