package future

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawn_Sequence(t *testing.T) {
	var second, third StateFunc
	first := func(ctx context.Context, _ interface{}, _ error) (interface{}, StateFunc, error) {
		return After(ctx, time.Millisecond, 1), second, nil
	}
	second = func(ctx context.Context, v interface{}, err error) (interface{}, StateFunc, error) {
		if err != nil {
			return nil, nil, err
		}
		return Resolved(v.(int) + 1), third, nil
	}
	third = func(ctx context.Context, v interface{}, _ error) (interface{}, StateFunc, error) {
		return v.(int) * 10, nil, nil
	}

	v, err := Spawn(t.Context(), first).Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 20, v)
}

func TestSpawn_RecoversFromRejection(t *testing.T) {
	var recoverState StateFunc
	start := func(ctx context.Context, _ interface{}, _ error) (interface{}, StateFunc, error) {
		return Rejected(errBoom), recoverState, nil
	}
	recoverState = func(ctx context.Context, _ interface{}, err error) (interface{}, StateFunc, error) {
		if errors.Is(err, errBoom) {
			return "recovered", nil, nil
		}
		return nil, nil, errors.New("unexpected")
	}

	v, err := Spawn(t.Context(), start).Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestSpawn_FailAborts(t *testing.T) {
	calls := 0
	var next StateFunc
	start := func(ctx context.Context, _ interface{}, _ error) (interface{}, StateFunc, error) {
		calls++
		return nil, next, errBoom
	}
	next = func(ctx context.Context, _ interface{}, _ error) (interface{}, StateFunc, error) {
		calls++
		return nil, nil, nil
	}

	_, err := Spawn(t.Context(), start).Await(t.Context())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestSpawn_LongMachine(t *testing.T) {
	const n = 200000
	var count StateFunc
	count = func(ctx context.Context, v interface{}, _ error) (interface{}, StateFunc, error) {
		i, _ := v.(int)
		if i == n {
			return i, nil, nil
		}
		return i + 1, count, nil
	}
	v, err := Spawn(t.Context(), count).Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, n, v)
}
