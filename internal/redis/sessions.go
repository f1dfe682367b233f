package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("branch session not found")

func sessionKey(token string) string { return "branch_token:" + token }

// BranchSessions maps opaque terminal tokens to branch ids.
type BranchSessions struct {
	kv  KV
	ttl time.Duration
}

func NewBranchSessions(kv KV, ttl time.Duration) *BranchSessions {
	return &BranchSessions{kv: kv, ttl: ttl}
}

func (s *BranchSessions) Issue(ctx context.Context, branchID int) (string, error) {
	token := uuid.NewString()
	if err := s.kv.Set(ctx, sessionKey(token), branchID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store branch session: %w", err)
	}
	return token, nil
}

func (s *BranchSessions) Resolve(ctx context.Context, token string) (int, error) {
	if _, err := uuid.Parse(token); err != nil {
		return 0, ErrSessionNotFound
	}
	raw, err := s.kv.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load branch session: %w", err)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrSessionNotFound
	}
	return id, nil
}

func (s *BranchSessions) Revoke(ctx context.Context, token string) error {
	return s.kv.Del(ctx, sessionKey(token)).Err()
}
