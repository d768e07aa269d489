package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ispcare/backend/internal/domain"
)

const (
	otpNamespace     = "otp"
	sessionNamespace = "session"
	maxTxRetries     = 5
)

var ErrTxContention = errors.New("too much contention on key")

// NewRedisClient connects to redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

type store struct {
	client redis.UniversalClient
	prefix string
}

func (s store) key(namespace, key string) string {
	return s.prefix + namespace + ":" + key
}

// RedisOTPStore keeps OTPs in redis so that every instance sees the same codes
type RedisOTPStore struct {
	store
	retention time.Duration
	now       func() time.Time
}

// NewRedisOTPStore keeps expired codes for retention; zero uses DefaultOTPRetention
func NewRedisOTPStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisOTPStore {
	return &RedisOTPStore{
		store:     store{client: client, prefix: prefix},
		retention: otpRetention(retention),
		now:       time.Now,
	}
}

// Save stores otp, replacing any earlier code
func (s *RedisOTPStore) Save(ctx context.Context, email string, otp domain.OTP) error {
	ttl := otp.ExpiresAt.Sub(s.now()) + s.retention
	if ttl <= 0 {
		return s.client.Del(ctx, s.key(otpNamespace, email)).Err()
	}
	data, err := json.Marshal(otp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(otpNamespace, email), data, ttl).Err()
}

// Update runs fn inside a WATCH transaction and retries when another client
// changed the key in between.
func (s *RedisOTPStore) Update(ctx context.Context, email string, fn func(*domain.OTP) (bool, error)) error {
	key := s.key(otpNamespace, email)

	var fnErr error
	txf := func(tx *redis.Tx) error {
		fnErr = nil

		var current *domain.OTP
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var otp domain.OTP
			if err := json.Unmarshal(data, &otp); err != nil {
				return fmt.Errorf("corrupt otp entry: %w", err)
			}
			current = &otp
		}

		remove, err := fn(current)
		fnErr = err
		if !remove {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		return fnErr
	}
	return ErrTxContention
}

// RedisSessionStore keeps sessions in redis
type RedisSessionStore struct {
	store
}

func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	return &RedisSessionStore{store: store{client: client, prefix: prefix}}
}

// Create stores a session. A ttl of zero stores it without expiry.
func (s *RedisSessionStore) Create(ctx context.Context, key string, session domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(sessionNamespace, key), data, ttl).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.key(sessionNamespace, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("corrupt session entry: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(sessionNamespace, key)).Err()
}
