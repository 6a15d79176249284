package httpstages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dcshock/runqueue/pipeline"
)

// ParseJSON decodes a response body into interface{}: objects become
// map[string]interface{}, arrays []interface{}.
func ParseJSON() pipeline.SuccessFunc {
	return func(_ context.Context, _ *pipeline.Pipeline, input interface{}) (interface{}, error) {
		var out interface{}
		if err := decodeBody("parsejson", input, &out, false); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// ParseJSONTo decodes a response body into a new *T. With strict set, fields
// that T does not declare are an error.
func ParseJSONTo[T any](strict ...bool) pipeline.SuccessFunc {
	disallow := len(strict) > 0 && strict[0]
	return func(_ context.Context, _ *pipeline.Pipeline, input interface{}) (interface{}, error) {
		out := new(T)
		if err := decodeBody("parsejsonto", input, out, disallow); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// bodyReader accepts the body shapes steps pass around.
func bodyReader(input interface{}) (io.Reader, bool) {
	switch v := input.(type) {
	case []byte:
		return bytes.NewReader(v), true
	case string:
		return bytes.NewBufferString(v), true
	case io.Reader:
		return v, true
	}
	return nil, false
}

func decodeBody(op string, input, dst interface{}, disallowUnknown bool) error {
	r, ok := bodyReader(input)
	if !ok {
		return fmt.Errorf("%s: input must be []byte, string or io.Reader, got %T", op, input)
	}
	dec := json.NewDecoder(r)
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if dec.More() {
		return fmt.Errorf("%s: trailing data after JSON value", op)
	}
	return nil
}
