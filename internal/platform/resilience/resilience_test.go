package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

func TestCall_RetriesTransportThenSucceeds(t *testing.T) {
	br := NewBreaker("test", 10, time.Second)
	attempts := 0

	result, err := Call(context.Background(), br, model.Stage1Acquire, Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "flaky")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, attempts)
}

func TestCall_DoesNotRetryParseError(t *testing.T) {
	br := NewBreaker("test", 10, time.Second)
	attempts := 0

	_, err := Call(context.Background(), br, model.Stage3Qualify, DefaultPolicy, func(ctx context.Context) (string, error) {
		attempts++
		return "", model.NewStageError(model.Stage3Qualify, model.ErrKindParseError, "bad json")
	})

	require.Error(t, err)
	se, ok := model.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindParseError, se.Kind)
	assert.Equal(t, 1, attempts)
}

func TestCall_ExhaustsRetriesAndSurfacesLastError(t *testing.T) {
	br := NewBreaker("test", 100, time.Second)

	_, err := Call(context.Background(), br, model.Stage1Acquire, Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}, func(ctx context.Context) (string, error) {
		return "", model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "down")
	})

	require.Error(t, err)
	se, ok := model.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindTransport, se.Kind)
}

func TestCall_ContextCancelledTranslatesToCancelledKind(t *testing.T) {
	br := NewBreaker("test", 10, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Call(ctx, br, model.Stage2Validate, DefaultPolicy, func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	require.Error(t, err)
	se, ok := model.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindCancelled, se.Kind)
}

func TestCeiling_RefusesOnceLimitWouldBeExceeded(t *testing.T) {
	ceiling := NewCeiling(10)

	require.NoError(t, ceiling.Reserve(model.Stage1Acquire, 6))
	require.NoError(t, ceiling.Reserve(model.Stage1Acquire, 3))

	err := ceiling.Reserve(model.Stage1Acquire, 2)
	require.Error(t, err)
	se, ok := model.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindBudgetExhausted, se.Kind)
	assert.Equal(t, Cost(9), ceiling.Spent())
}

func TestCeiling_ZeroLimitDisablesEnforcement(t *testing.T) {
	ceiling := NewCeiling(0)
	require.NoError(t, ceiling.Reserve(model.Stage1Acquire, 1_000_000))
}
