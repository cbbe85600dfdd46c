package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const deviceKeyPrefix = "idn:dev"

// DefaultRememberDeviceTTL is how long a verified device skips the
// two-factor challenge.
var DefaultRememberDeviceTTL = 30 * 24 * time.Hour

// RememberedDevices tracks devices that already passed a two-factor
// challenge. Each device expires on its own schedule, independent of any
// session lifetime.
type RememberedDevices interface {
	Remember(ctx context.Context, accountID, deviceID string, ttl time.Duration) error
	IsRemembered(ctx context.Context, accountID, deviceID string) (bool, error)
	Forget(ctx context.Context, accountID, deviceID string) error
}

type redisDeviceStore struct {
	client *redis.Client
}

func NewRedisDeviceStore(client *redis.Client) RememberedDevices {
	return &redisDeviceStore{client: client}
}

func deviceKey(accountID, deviceID string) string {
	return deviceKeyPrefix + ":" + accountID + ":" + deviceID
}

func (s *redisDeviceStore) Remember(ctx context.Context, accountID, deviceID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultRememberDeviceTTL
	}

	key := deviceKey(accountID, deviceID)
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to remember device")
	}

	return nil
}

func (s *redisDeviceStore) IsRemembered(ctx context.Context, accountID, deviceID string) (bool, error) {
	key := deviceKey(accountID, deviceID)

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to check remembered device")
	}

	return n > 0, nil
}

func (s *redisDeviceStore) Forget(ctx context.Context, accountID, deviceID string) error {
	key := deviceKey(accountID, deviceID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to forget device")
	}
	return nil
}
