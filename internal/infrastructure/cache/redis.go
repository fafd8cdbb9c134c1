package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"cashledger/internal/config"

	"github.com/go-redis/redis/v8"
)

// InitRedis 连接 Redis，连不上直接退出
// 结算锁依赖 Redis，没有它不允许服务起来
func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("连接 Redis 失败: addr=%s:%d, err=%v", cfg.Host, cfg.Port, err)
	}

	log.Printf("Redis 连接成功: %s:%d/%d", cfg.Host, cfg.Port, cfg.DB)
	return client
}
