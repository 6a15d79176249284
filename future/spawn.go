package future

import "context"

// StateFunc is one state of a machine driven by Spawn. It receives the settled
// outcome of the previous state (value and err, err non-nil when the previous
// awaitable rejected) and returns the value to wait for, the next state, and
// an error that aborts the machine.
//
// Returning a nil next state finishes the machine with out (awaited if it is
// an Awaitable). out may be a plain value, in which case it is passed to the
// next state unchanged.
type StateFunc func(ctx context.Context, value interface{}, err error) (out interface{}, next StateFunc, fail error)

// Spawn drives the state machine starting at start until a state returns a nil
// next state or an error. Each Awaitable a state returns is awaited before the
// next state runs, and a rejection is handed to the next state as err so it can
// recover or fail. The loop is iterative, so long machines do not grow the stack.
func Spawn(ctx context.Context, start StateFunc) *Future {
	return Go(ctx, func(ctx context.Context) (interface{}, error) {
		var (
			value interface{}
			err   error
		)
		for state := start; ; {
			out, next, fail := state(ctx, value, err)
			if fail != nil {
				return nil, fail
			}
			value, err = out, nil
			if aw, ok := out.(Awaitable); ok {
				value, err = aw.Await(ctx)
			}
			if next == nil {
				return value, err
			}
			state = next
		}
	})
}
