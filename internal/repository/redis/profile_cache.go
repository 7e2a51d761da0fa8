package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"myMarketplace/business/profile"
	"myMarketplace/domain"
)

type ProfileCache struct {
	client *redis.Client
}

var _ profile.ProfileCache = (*ProfileCache)(nil)

func NewProfileCache(client *redis.Client) *ProfileCache {
	return &ProfileCache{
		client: client,
	}
}

func profileKey(userID uint) string {
	// key format: "profile:user:{user_id}"
	return fmt.Sprintf("profile:user:%d", userID)
}

// Get returns nil, nil when the profile is not cached.
func (c *ProfileCache) Get(ctx context.Context, userID uint) (*domain.BehaviorProfile, error) {
	val, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile from Redis: %w", err)
	}

	var p domain.BehaviorProfile
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached profile: %w", err)
	}

	return &p, nil
}

func (c *ProfileCache) Set(ctx context.Context, p *domain.BehaviorProfile, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := c.client.Set(ctx, profileKey(p.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store profile in Redis: %w", err)
	}

	return nil
}

func (c *ProfileCache) Invalidate(ctx context.Context, userID uint) error {
	if err := c.client.Del(ctx, profileKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached profile: %w", err)
	}
	return nil
}
