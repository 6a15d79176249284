package httpstages

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dcshock/runqueue/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quote struct {
	ID     int    `json:"id"`
	Author string `json:"author"`
}

func TestParseJSON_BodyShapes(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  interface{}
	}{
		{"bytes", []byte(`{"id":1}`), map[string]interface{}{"id": float64(1)}},
		{"string", `[1,"two"]`, []interface{}{float64(1), "two"}},
		{"reader", strings.NewReader(`"plain"`), "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ParseJSON()(t.Context(), nil, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestParseJSON_Errors(t *testing.T) {
	for name, input := range map[string]interface{}{
		"wrong type": 42,
		"truncated":  []byte(`{"id":`),
		"trailing":   `{"id":1} {"id":2}`,
	} {
		_, err := ParseJSON()(t.Context(), nil, input)
		assert.Error(t, err, name)
	}
}

func TestParseJSONTo(t *testing.T) {
	out, err := ParseJSONTo[quote]()(t.Context(), nil, []byte(`{"id":3,"author":"Ada","extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, &quote{ID: 3, Author: "Ada"}, out)

	_, err = ParseJSONTo[quote](true)(t.Context(), nil, []byte(`{"id":3,"extra":true}`))
	assert.ErrorContains(t, err, "unknown field")
}

func TestExpectations(t *testing.T) {
	obj := map[string]interface{}{"id": float64(1), "author": "Ada"}

	tests := []struct {
		name  string
		step  pipeline.SuccessFunc
		input interface{}
		ok    bool
	}{
		{"equal", ExpectEqual(obj), obj, true},
		{"not equal", ExpectEqual("Ada"), "Grace", false},
		{"keys present", ExpectKey("id", "author"), obj, true},
		{"key missing", ExpectKey("id", "year"), obj, false},
		{"not an object", ExpectKey("id"), []interface{}{obj}, false},
		{"custom", Expect(func(v interface{}) error {
			if v.(map[string]interface{})["author"] != "Ada" {
				return errors.New("wrong author")
			}
			return nil
		}), obj, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.step(t.Context(), nil, tt.input)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.input, out)
				return
			}
			assert.ErrorIs(t, err, ErrExpectation)
			assert.Nil(t, out)
		})
	}
}

func TestExpect_NilCheckPanics(t *testing.T) {
	assert.Panics(t, func() { Expect(nil) })
}

func TestDecodeChain(t *testing.T) {
	p := pipeline.New("decode").
		Then(ParseJSONTo[quote](), nil).
		Then(pipeline.Transform(func(_ context.Context, q *quote) (string, error) { return q.Author, nil }), nil).
		Then(ExpectEqual("Ada"), nil)

	out, err := p.Do(t.Context(), `{"id":1,"author":"Ada"}`)
	require.NoError(t, err)
	assert.Equal(t, "Ada", out)

	_, err = p.Do(t.Context(), `{"id":2,"author":"Grace"}`)
	assert.ErrorIs(t, err, ErrExpectation)
}
