package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/postboard/backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient - 세션 저장소용 Redis 클라이언트.
// 세션 검증이 Redis 에 의존하므로 연결 실패 시 기동하지 않는다.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	dbNum, err := strconv.Atoi(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %q", cfg.DB)
	}

	var tlsConf *tls.Config
	if strings.EqualFold(cfg.TLS, "true") || cfg.TLS == "1" {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           dbNum,
		TLSConfig:    tlsConf,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
