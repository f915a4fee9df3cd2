package usercache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/scan-portal/internal/errors"
	"github.com/jrsteele09/scan-portal/session"
	"github.com/jrsteele09/scan-portal/users"
	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "scan-portal:user:"

var _ session.UserCache = (*Redis)(nil)

// Redis shares cached users between portal instances
type Redis struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Dial connects to redis and checks the connection
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "[UserCache Dial] redis %s", addr)
	}
	return client, nil
}

func (c *Redis) key(accessToken string) string {
	return c.prefix + Key(accessToken)
}

func (c *Redis) Get(ctx context.Context, accessToken string) (*users.User, error) {
	data, err := c.client.Get(ctx, c.key(accessToken)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[UserCache Get] redis")
	}

	var user users.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, errors.Wrapf(err, "[UserCache Get] decode")
	}
	return &user, nil
}

func (c *Redis) Put(ctx context.Context, accessToken string, user *users.User, ttl time.Duration) error {
	if user == nil {
		return errors.New("user is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return errors.Wrapf(err, "[UserCache Put] encode")
	}
	if err := c.client.Set(ctx, c.key(accessToken), payload, ttl).Err(); err != nil {
		return errors.Wrapf(err, "[UserCache Put] redis")
	}
	return nil
}

func (c *Redis) Delete(ctx context.Context, accessToken string) error {
	if err := c.client.Del(ctx, c.key(accessToken)).Err(); err != nil {
		return errors.Wrapf(err, "[UserCache Delete] redis")
	}
	return nil
}
