package jsontree_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexfren/backend/internal/jsontree"
)

func TestParse_PreservesKeyOrder(t *testing.T) {
	v, err := jsontree.Parse([]byte(`{"zeta": 1, "alpha": {"b": true, "a": null}, "mid": ["x", 2.5]}`))
	require.NoError(t, err)

	var keys []string
	for _, m := range v.Members() {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys)

	alpha, ok := v.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, jsontree.Object, alpha.Kind())
	assert.Equal(t, "b", alpha.Members()[0].Key)

	mid, _ := v.Get("mid")
	require.Equal(t, jsontree.Array, mid.Kind())
	assert.Equal(t, "x", mid.Items()[0].Text())
	assert.Equal(t, "2.5", mid.Items()[1].Text())

	n, ok := v.Members()[0].Value.Int()
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestParse_ByteOrderMark(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"video_list": []}`)...)
	v, err := jsontree.Parse(data)
	require.NoError(t, err)
	assert.True(t, v.Has("video_list"))
}

func TestParse_DuplicateKeyKeepsPositionTakesLastValue(t *testing.T) {
	v, err := jsontree.Parse([]byte(`{"a": "first", "b": 1, "a": "second"}`))
	require.NoError(t, err)
	require.Equal(t, 2, v.Len())
	assert.Equal(t, "a", v.Members()[0].Key)
	assert.Equal(t, "second", v.Field("a"))
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{name: "Trailing comma", input: "{\n  \"a\": [1, 2,]\n}", wantLine: 2},
		{name: "Truncated", input: "{\n\"a\": {\n\"b\": 1\n", wantLine: 3},
		{name: "Trailing garbage", input: "{}\n{}", wantLine: 2},
		{name: "Empty", input: "", wantLine: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := jsontree.Parse([]byte(tt.input))
			assert.Nil(t, v)
			require.Error(t, err)
			assert.ErrorIs(t, err, jsontree.ErrMalformed)

			var se *jsontree.SyntaxError
			require.True(t, errors.As(err, &se))
			assert.GreaterOrEqual(t, se.Line, tt.wantLine)
			assert.Contains(t, se.Error(), "line")
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	v, err := jsontree.Parse([]byte(`{"url": " https://y.tu/1 ", "keywords": ["swap", "", "dex"], "category": "defi", "n": 3}`))
	require.NoError(t, err)

	assert.Equal(t, "https://y.tu/1", v.Field("url"))
	assert.Equal(t, "", v.Field("missing"))
	assert.Equal(t, []string{"swap", "dex"}, v.Strings("keywords"))
	assert.Equal(t, []string{"defi"}, v.Strings("category"))
	assert.Equal(t, "3", v.Field("n"))

	var nilValue *jsontree.Value
	assert.Equal(t, jsontree.Null, nilValue.Kind())
	assert.Nil(t, nilValue.Members())
}

func TestCanonicalHash(t *testing.T) {
	a, err := jsontree.CanonicalHash([]byte(`{"b": [1, 2], "a": {"y": 1, "x": "s"}}`))
	require.NoError(t, err)
	b, err := jsontree.CanonicalHash([]byte("{\n  \"a\": {\"x\": \"s\", \"y\": 1},\n  \"b\": [1,2]\n}"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := jsontree.CanonicalHash([]byte(`{"b": [2, 1], "a": {"y": 1, "x": "s"}}`))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = jsontree.CanonicalHash([]byte(`{"a":`))
	assert.ErrorIs(t, err, jsontree.ErrMalformed)
}

func TestCanonicalHash_TrailingContent(t *testing.T) {
	for _, input := range []string{`{"a":1} garbage`, "{}\n{}", `[1] ]`} {
		t.Run(input, func(t *testing.T) {
			_, err := jsontree.CanonicalHash([]byte(input))
			require.Error(t, err)
			assert.ErrorIs(t, err, jsontree.ErrMalformed)

			var se *jsontree.SyntaxError
			assert.True(t, errors.As(err, &se))
		})
	}

	_, err := jsontree.CanonicalHash([]byte("{\"a\": 1}\n\n"))
	assert.NoError(t, err, "trailing whitespace is fine")
}
