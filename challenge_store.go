package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "idn:tfa"

// ChallengeRecord is the pending two-factor challenge as stored. The plain
// code is never persisted, only its digest.
type ChallengeRecord struct {
	AccountID string            `json:"account_id"`
	Provider  TwoFactorProvider `json:"provider"`
	CodeHash  string            `json:"code_hash"`
	ExpiresAt int64             `json:"expires_at"`
	Attempts  int               `json:"attempts"`
}

// ChallengeStore keeps pending two-factor challenges. Implementations must
// expire records on their own and keep at most one live challenge per
// account and provider.
type ChallengeStore interface {
	Put(ctx context.Context, record *ChallengeRecord, ttl time.Duration) error
	Get(ctx context.Context, accountID string, provider TwoFactorProvider) (*ChallengeRecord, error)
	Delete(ctx context.Context, accountID string, provider TwoFactorProvider) error
	// RecordFailure bumps the attempt counter atomically and reports whether
	// the challenge is now exhausted. An exhausted challenge is removed.
	RecordFailure(ctx context.Context, accountID string, provider TwoFactorProvider, maxAttempts int) (bool, error)
}

type redisChallengeStore struct {
	client *redis.Client
	now    Clock
}

type ChallengeStoreOption func(*redisChallengeStore)

func WithChallengeClock(clock Clock) ChallengeStoreOption {
	return func(s *redisChallengeStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

func NewRedisChallengeStore(client *redis.Client, opts ...ChallengeStoreOption) ChallengeStore {
	s := &redisChallengeStore{
		client: client,
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func challengeKey(accountID string, provider TwoFactorProvider) string {
	return challengeKeyPrefix + ":" + accountID + ":" + string(provider)
}

// HashChallengeCode digests a one-time code for storage and comparison.
func HashChallengeCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func (s *redisChallengeStore) Put(ctx context.Context, record *ChallengeRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode challenge")
	}

	key := challengeKey(record.AccountID, record.Provider)
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to store challenge")
	}

	return nil
}

func (s *redisChallengeStore) Get(ctx context.Context, accountID string, provider TwoFactorProvider) (*ChallengeRecord, error) {
	key := challengeKey(accountID, provider)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load challenge")
	}

	record := &ChallengeRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode challenge")
	}

	if s.now().Unix() > record.ExpiresAt {
		s.client.Del(ctx, key)
		return nil, ErrChallengeExpired
	}

	return record, nil
}

func (s *redisChallengeStore) Delete(ctx context.Context, accountID string, provider TwoFactorProvider) error {
	key := challengeKey(accountID, provider)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete challenge")
	}
	return nil
}

func (s *redisChallengeStore) RecordFailure(ctx context.Context, accountID string, provider TwoFactorProvider, maxAttempts int) (bool, error) {
	const maxRetries = 4
	key := challengeKey(accountID, provider)

	for i := 0; i < maxRetries; i++ {
		var exhausted bool

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record := &ChallengeRecord{}
			if err := json.Unmarshal(data, record); err != nil {
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			record.Attempts++
			if record.Attempts >= maxAttempts {
				exhausted = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			payload, err := json.Marshal(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}

		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrChallengeNotFound
			}
			if errors.Is(err, ErrChallengeExpired) {
				return false, err
			}
			return false, errors.Wrap(err, errors.CategoryInternal, "failed to record challenge attempt")
		}

		return exhausted, nil
	}

	return false, ErrChallengeNotFound
}
