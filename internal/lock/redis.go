package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds the connection settings. Only Addr is mandatory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a Locker backed by SET NX PX, shared by every instance that
// talks to the same Redis.
type Redis struct {
	Client *redis.Client
}

// NewRedis initializes a Redis client from config.
func NewRedis(cfg RedisConfig) *Redis {
	opts := &redis.Options{
		Addr: cfg.Addr,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return &Redis{Client: redis.NewClient(opts)}
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.Client.Close()
}

// TryAcquire sets name to a fresh token if the key is absent.
func (r *Redis) TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, bool, error) {
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: r.Client, name: name, token: token}, true, nil
}

type redisLease struct {
	client *redis.Client
	name   string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.name}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", l.name, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
