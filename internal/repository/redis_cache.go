package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/salonbook/internal/model"
	"github.com/redis/go-redis/v9"
)

// servicesCacheKey はメニュー一覧のキャッシュキー。
// スキーマを変えた場合はバージョンを上げる。
const servicesCacheKey = "salonbook:services:v1"

// NewRedisClient はREDIS_URLからクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RedisServiceCache はメニュー一覧をJSONでRedisに保持するキャッシュ。
type RedisServiceCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisServiceCache はRedisServiceCacheを生成する。ttlが0の場合は期限なし。
func NewRedisServiceCache(client redis.Cmdable, ttl time.Duration) *RedisServiceCache {
	return &RedisServiceCache{client: client, ttl: ttl}
}

// GetServices はキャッシュ済みのメニュー一覧を返す。
// キャッシュミスや復元失敗の場合はfalseを返す。
func (c *RedisServiceCache) GetServices(ctx context.Context) ([]*model.Service, bool) {
	data, err := c.client.Get(ctx, servicesCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("services cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}

	var services []*model.Service
	if err := json.Unmarshal(data, &services); err != nil {
		slog.Warn("services cache decode failed", slog.String("error", err.Error()))
		return nil, false
	}
	return services, true
}

// SetServices はメニュー一覧をキャッシュする。書き込み失敗はログのみ。
func (c *RedisServiceCache) SetServices(ctx context.Context, services []*model.Service) {
	data, err := json.Marshal(services)
	if err != nil {
		slog.Warn("services cache encode failed", slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, servicesCacheKey, data, c.ttl).Err(); err != nil {
		slog.Warn("services cache write failed", slog.String("error", err.Error()))
	}
}
