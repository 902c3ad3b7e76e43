// Package redis keeps one-time authorization codes in Redis, letting the
// server expire them natively.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

const keyPrefix = "otp:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// OTPStore implements port.OTPStore. Each account owns a single key, so
// saving a new code replaces the previous one.
type OTPStore struct {
	client *goredis.Client
}

// NewOTPStore wraps a connected client.
func NewOTPStore(client *goredis.Client) *OTPStore {
	return &OTPStore{client: client}
}

func otpKey(accountID string) string { return keyPrefix + accountID }

func (s *OTPStore) SaveOTP(ctx context.Context, rec *domain.OTPRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		_, err := s.ConsumeOTP(ctx, rec.AccountID)
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, otpKey(rec.AccountID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set otp: %w", err)
	}
	return nil
}

func (s *OTPStore) LatestOTP(ctx context.Context, accountID string) (*domain.OTPRecord, error) {
	payload, err := s.client.Get(ctx, otpKey(accountID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, &domain.ErrNotFound{Resource: "otp", ID: accountID}
	}
	if err != nil {
		return nil, fmt.Errorf("redis get otp: %w", err)
	}
	var rec domain.OTPRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode otp: %w", err)
	}
	return &rec, nil
}

func (s *OTPStore) ConsumeOTP(ctx context.Context, accountID string) (bool, error) {
	n, err := s.client.Del(ctx, otpKey(accountID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del otp: %w", err)
	}
	return n == 1, nil
}

// Ping reports whether Redis answers.
func (s *OTPStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
