package pipeline

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dcshock/runqueue/future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positive(n int) bool { return n > 0 }

func TestStages_PassThrough(t *testing.T) {
	ctx := t.Context()
	for _, in := range []interface{}{nil, 7, "word", []int{1, 2}} {
		out, err := Identity()(ctx, nil, in)
		require.NoError(t, err)
		assert.Equal(t, in, out)

		out, err = Constant("fixed")(ctx, nil, in)
		require.NoError(t, err)
		assert.Equal(t, "fixed", out)
	}
}

func TestTap_SeesRunValue(t *testing.T) {
	var seen []interface{}
	var ids []string
	p := New("tap").
		Then(Tap(func(ctx context.Context, v interface{}) {
			seen = append(seen, v)
			id, _ := RunIDFromContext(ctx)
			ids = append(ids, id)
		}), nil).
		Then(Transform(func(_ context.Context, s string) (int, error) { return len(s), nil }), nil)

	out, err := p.Do(t.Context(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, 4, out)
	assert.Equal(t, []interface{}{"abcd"}, seen)
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		input   interface{}
		wantMsg string
	}{
		{name: "passes", msg: "must be positive", input: 3},
		{name: "rejects", msg: "must be positive", input: -1, wantMsg: "must be positive"},
		{name: "default message", input: 0, wantMsg: "validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Validate(positive, tt.msg)(t.Context(), nil, tt.input)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.input, out)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantMsg, verr.Message)
			assert.Equal(t, tt.input, verr.Value)
		})
	}

	_, err := Validate(positive, "")(t.Context(), nil, "seven")
	require.Error(t, err)
	assert.False(t, errors.As(err, new(*ValidationError)), "type mismatch is not a validation failure")
}

func TestTransform_Chain(t *testing.T) {
	p := New("transform").
		Then(Transform(func(_ context.Context, n int) (string, error) { return "#" + strconv.Itoa(n), nil }), nil).
		Then(Transform(func(_ context.Context, s string) (int, error) { return len(s), nil }), nil)

	out, err := p.Do(t.Context(), 123)
	require.NoError(t, err)
	assert.Equal(t, 4, out)

	_, err = p.Do(t.Context(), "123")
	assert.ErrorContains(t, err, "transform: expected int, got string")
}

func TestRecover_RestartsChain(t *testing.T) {
	var reached []int
	p := New("recover").
		Then(Validate(positive, "must be positive"), nil).
		Catch(Recover(1)).
		Then(Tap(func(_ context.Context, v interface{}) { reached = append(reached, v.(int)) }), nil)

	out, err := p.Do(t.Context(), -5)
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	out, err = p.Do(t.Context(), 9)
	require.NoError(t, err)
	assert.Equal(t, 9, out)
	assert.Equal(t, []int{1, 9}, reached)
}

func TestDelay(t *testing.T) {
	start := time.Now()
	out, err := New("delay").Then(Delay(15*time.Millisecond), nil).Do(t.Context(), "later")
	require.NoError(t, err)
	assert.Equal(t, "later", out)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = New("delay").Then(Delay(time.Hour), nil).Do(ctx, "never")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout(t *testing.T) {
	double := Transform(func(_ context.Context, n int) (int, error) { return n * 2, nil })
	blocked := SuccessFunc(func(ctx context.Context, _ *Pipeline, _ interface{}) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	pending := SuccessFunc(func(ctx context.Context, _ *Pipeline, v interface{}) (interface{}, error) {
		return future.After(ctx, time.Hour, v), nil
	})

	out, err := WithTimeout(double, time.Second)(t.Context(), nil, 21)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	_, err = WithTimeout(blocked, 10*time.Millisecond)(t.Context(), nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = WithTimeout(pending, 10*time.Millisecond)(t.Context(), nil, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMapSlice(t *testing.T) {
	errOdd := errors.New("odd")
	label := MapSlice(func(_ context.Context, n int) (string, error) {
		return "item-" + strconv.Itoa(n), nil
	})
	strict := MapSlice(func(_ context.Context, n int) (int, error) {
		if n%2 != 0 {
			return 0, errOdd
		}
		return n / 2, nil
	})

	out, err := label(t.Context(), nil, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"item-1", "item-2", "item-3"}, out)

	_, err = strict(t.Context(), nil, []int{2, 4, 5})
	assert.ErrorIs(t, err, errOdd)
	assert.ErrorContains(t, err, "mapslice[2]")

	_, err = label(t.Context(), nil, "1,2,3")
	assert.Error(t, err)
}

func TestFilterSlice(t *testing.T) {
	short := FilterSlice(func(s string) bool { return len(s) <= 3 })

	out, err := short(t.Context(), nil, strings.Fields("a bb cccc ddd eeeee"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bb", "ddd"}, out)

	out, err = short(t.Context(), nil, []string{"longer"})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)

	_, err = short(t.Context(), nil, []int{1})
	assert.Error(t, err)
}
