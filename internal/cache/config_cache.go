// Package cache keeps resolved tenant configs in redis so event raising does
// not hit the config table on every business event.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unclebandit/notification-engine/internal/model"
)

type ConfigCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewConfigCache connects to redis and verifies the connection.
func NewConfigCache(ctx context.Context, addr, password string, ttl time.Duration, logger *zap.Logger) (*ConfigCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		PoolSize:        20,
		MinIdleConns:    2,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", addr), zap.Duration("ttl", ttl))
	return NewConfigCacheWithClient(client, ttl, logger), nil
}

func NewConfigCacheWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ConfigCache {
	return &ConfigCache{client: client, ttl: ttl, logger: logger}
}

func Key(companyID string) string {
	return fmt.Sprintf("notifycfg:v1:%s", companyID)
}

// Get returns (nil, false, nil) on a cache miss.
func (c *ConfigCache) Get(ctx context.Context, companyID string) (*model.CompanyNotificationConfig, bool, error) {
	data, err := c.client.Get(ctx, Key(companyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cfg model.CompanyNotificationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		// a bad entry is treated as a miss and dropped
		c.logger.Warn("dropping undecodable config cache entry", zap.String("company_id", companyID), zap.Error(err))
		_ = c.client.Del(ctx, Key(companyID)).Err()
		return nil, false, nil
	}
	return &cfg, true, nil
}

func (c *ConfigCache) Set(ctx context.Context, cfg *model.CompanyNotificationConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(cfg.CompanyID), data, c.ttl).Err()
}

// Fill stores cfg only when the key is absent. Read misses use it so an
// entry written by a concurrent update is never replaced by an older row.
func (c *ConfigCache) Fill(ctx context.Context, cfg *model.CompanyNotificationConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.client.SetNX(ctx, Key(cfg.CompanyID), data, c.ttl).Err()
}

func (c *ConfigCache) Invalidate(ctx context.Context, companyID string) error {
	return c.client.Del(ctx, Key(companyID)).Err()
}

func (c *ConfigCache) Close() error {
	return c.client.Close()
}
