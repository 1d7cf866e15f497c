package dgii

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ TokenCache = (*RedisTokenCache)(nil)

// RedisTokenCache guarda los tokens de sesión DGII en Redis para que API y
// worker compartan la misma sesión en lugar de repetir el flujo de semilla.
type RedisTokenCache struct {
	client *redis.Client
}

// NewRedisTokenCache construye el caché sobre un cliente Redis ya conectado.
func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

func tokenKey(env, rnc string) string {
	return fmt.Sprintf("dgii:token:%s:%s", env, rnc)
}

// Get devuelve el token cacheado o "" si no hay (miss no es error).
func (c *RedisTokenCache) Get(ctx context.Context, env, rnc string) (string, error) {
	token, err := c.client.Get(ctx, tokenKey(env, rnc)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("token cache get: %w", err)
	}
	return token, nil
}

// Set guarda el token con el TTL calculado a partir del vencimiento DGII.
func (c *RedisTokenCache) Set(ctx context.Context, env, rnc, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := c.client.Set(ctx, tokenKey(env, rnc), token, ttl).Err(); err != nil {
		return fmt.Errorf("token cache set: %w", err)
	}
	return nil
}
