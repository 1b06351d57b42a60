package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBucketBurstThenRefill(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	bucket, err := NewMemoryBucket(1, 3, func() time.Time { return now })
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 3, res.Limit)
	}

	res, err := bucket.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Second, res.RetryAfter)

	other, err := bucket.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(1500 * time.Millisecond)
	res, err = bucket.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = bucket.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)
}

func TestMemoryBucketValidation(t *testing.T) {
	_, err := NewMemoryBucket(0, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = NewMemoryBucket(1, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidRate)

	bucket, err := NewMemoryBucket(1, 1, nil)
	require.NoError(t, err)
	_, err = bucket.Allow(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestTokenBucketRequiresClient(t *testing.T) {
	_, err := NewTokenBucket(nil, "p:", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(1, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}
