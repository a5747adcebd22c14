package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docintel/internal/config"
)

// Pinger reports broker reachability for health checks.
type Pinger struct {
	rdb *redis.Client
}

func NewPinger(cfg config.RedisConfig) *Pinger {
	return &Pinger{rdb: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

func (p *Pinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (p *Pinger) Close() error {
	return p.rdb.Close()
}
