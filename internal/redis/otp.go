package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpCodePrefix     = "otp:code:"
	otpAttemptsPrefix = "otp:attempts:"
)

// OTPStore holds trip OTPs issued by dispatch.
type OTPStore struct {
	client *redis.Client
}

// NewOTPStore creates a new OTPStore.
func NewOTPStore(client *redis.Client) *OTPStore {
	return &OTPStore{client: client}
}

// Issue stores the code for a trip and resets its failure count.
func (s *OTPStore) Issue(ctx context.Context, tripID, code string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, otpCodePrefix+tripID, code, ttl)
	pipe.Del(ctx, otpAttemptsPrefix+tripID)
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the live code for a trip, or "" if none.
func (s *OTPStore) Get(ctx context.Context, tripID string) (string, error) {
	code, err := s.client.Get(ctx, otpCodePrefix+tripID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return code, err
}

// RecordFailure increments the failure count. The counter expires with the code.
func (s *OTPStore) RecordFailure(ctx context.Context, tripID string) (int, error) {
	key := otpAttemptsPrefix + tripID

	ttl, err := s.client.TTL(ctx, otpCodePrefix+tripID).Result()
	if err != nil {
		return 0, err
	}

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

// Revoke deletes the code and its failure count.
func (s *OTPStore) Revoke(ctx context.Context, tripID string) error {
	return s.client.Del(ctx, otpCodePrefix+tripID, otpAttemptsPrefix+tripID).Err()
}
