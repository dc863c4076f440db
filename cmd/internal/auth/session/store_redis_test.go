package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRegistry_Contract(t *testing.T) {
	runRegistryContract(t, func(t *testing.T, opts ...Option) Registry {
		_, client := newTestRedis(t)
		return NewRedisRegistry(client, Config{Backend: BackendRedis, TTL: time.Hour}, opts...)
	}, 500)
}

func TestRedisRegistry_StoresHashedKeyWithTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	r := NewRedisRegistry(client, Config{TTL: 5 * time.Second, RedisKeyPrefix: "test:"})

	tok, err := r.Add(ctx, "alice")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, r.key(tok), keys[0])
	assert.NotContains(t, keys[0], tok.String(), "plaintext token must not be stored")
	assert.Equal(t, 5*time.Second, mr.TTL(keys[0]))

	val, err := mr.Get(keys[0])
	require.NoError(t, err)
	assert.Equal(t, "alice", val)
}

func TestRedisRegistry_SlidingExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	r := NewRedisRegistry(client, Config{TTL: 5 * time.Second})

	tok, err := r.Add(ctx, "alice")
	require.NoError(t, err)

	mr.FastForward(4 * time.Second)
	got, err := r.Get(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, 5*time.Second, mr.TTL(r.key(tok)), "lookup must reset the TTL")

	mr.FastForward(4 * time.Second)
	_, err = r.Get(ctx, tok)
	require.NoError(t, err)

	mr.FastForward(5 * time.Second)
	_, err = r.Get(ctx, tok)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisRegistry_BackendErrors(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	r := NewRedisRegistry(client, Config{TTL: time.Minute})

	require.NoError(t, r.Ping(ctx))

	mr.SetError("server unavailable")
	defer mr.SetError("")

	_, err := r.Add(ctx, "alice")
	assert.Error(t, err)

	_, err = r.Get(ctx, newToken())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)

	assert.Error(t, r.Remove(ctx, newToken()))
}

func TestRedisRegistry_AddSkipsExistingKey(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	taken, fresh := newToken(), newToken()
	src := &scriptedTokens{queue: []Token{taken, fresh}}
	r := NewRedisRegistry(client, Config{TTL: time.Minute}, withTokenSource(src.next))

	require.NoError(t, mr.Set(r.key(taken), "mallory"))

	tok, err := r.Add(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, fresh, tok)
	assert.Equal(t, 2, src.count())

	val, err := mr.Get(r.key(taken))
	require.NoError(t, err)
	assert.Equal(t, "mallory", val, "SET NX must not overwrite an existing key")
}
