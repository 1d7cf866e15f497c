package dgii_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infradgii "github.com/jhoicas/Facturacion-ecf/internal/infrastructure/dgii"
)

func newTestCache(t *testing.T) (*infradgii.RedisTokenCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return infradgii.NewRedisTokenCache(client), mr
}

func TestTokenCache_GuardaYRecupera(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	err := cache.Set(ctx, "TesteCF", "131880681", "token-abc", time.Minute)
	require.NoError(t, err)

	token, err := cache.Get(ctx, "TesteCF", "131880681")
	require.NoError(t, err)
	assert.Equal(t, "token-abc", token)
}

func TestTokenCache_MissDevuelveVacio(t *testing.T) {
	cache, _ := newTestCache(t)

	token, err := cache.Get(context.Background(), "TesteCF", "131880681")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenCache_AisladoPorAmbienteYRNC(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "TesteCF", "131880681", "token-test", time.Minute))
	require.NoError(t, cache.Set(ctx, "eCF", "131880681", "token-prod", time.Minute))

	token, err := cache.Get(ctx, "TesteCF", "131880681")
	require.NoError(t, err)
	assert.Equal(t, "token-test", token)

	token, err = cache.Get(ctx, "eCF", "131880681")
	require.NoError(t, err)
	assert.Equal(t, "token-prod", token)

	token, err = cache.Get(ctx, "TesteCF", "101000001")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenCache_ExpiraConTTL(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "CerteCF", "131880681", "token-ttl", 30*time.Second))

	mr.FastForward(time.Minute)

	token, err := cache.Get(ctx, "CerteCF", "131880681")
	require.NoError(t, err)
	assert.Empty(t, token)
}
