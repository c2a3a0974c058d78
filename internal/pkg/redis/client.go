package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPoolSize = 10
	defaultTimeout  = 3 * time.Second
)

// Client - кэш проверки аттестатов. Все ключи получают общий префикс,
// чтобы сервис мог делить Redis с другими приложениями.
type Client struct {
	client *redis.Client
	prefix string
}

// Config конфигурация для подключения к Redis
type Config struct {
	Host      string
	Port      string
	Password  string
	DB        int
	PoolSize  int
	Timeout   time.Duration // чтение и запись; подключение - вдвое дольше
	KeyPrefix string
}

func options(cfg Config) *redis.Options {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     poolSize,
		MinIdleConns: max(1, poolSize/5),
	}
}

// NewClient создает клиент и проверяет подключение
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := options(cfg)
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	return &Client{client: rdb, prefix: cfg.KeyPrefix}, nil
}

func (c *Client) key(key string) string {
	return c.prefix + key
}

// Ping проверяет подключение к Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Set сохраняет значение с TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

// Get читает значение; отсутствие ключа - redis.Nil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, c.key(key)).Result()
}

// Del удаляет ключи одной командой
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}
	return c.client.Del(ctx, prefixed...).Err()
}

// Close закрывает подключение
func (c *Client) Close() error {
	return c.client.Close()
}
