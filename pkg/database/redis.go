package database

import (
	"context"
	"fmt"

	"stenagrafist-go/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedis 创建 Redis 客户端。连接检查交给 PingRedis，以便与其它启动步骤并行。
func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// PingRedis 测试连接是否可用。
func PingRedis(ctx context.Context, rdb *redis.Client) error {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}
