package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeScalar(t *testing.T) {
	v := Text("plain response")
	assert.Equal(t, "plain response", v.Normalize())
}

func TestNormalizeListOfMapsExtractsFirstText(t *testing.T) {
	v := List(
		Map(map[string]Value{"text": Text("first snippet"), "rank": Text("1")}),
		Map(map[string]Value{"text": Text("second snippet")}),
	)
	assert.Equal(t, "first snippet", v.Normalize())
}

func TestNormalizeListOfMapsFallsBackToContent(t *testing.T) {
	v := List(Map(map[string]Value{"content": Text("body"), "title": Text("t")}))
	assert.Equal(t, "body", v.Normalize())
}

func TestNormalizeListOfScalarsTakesFirst(t *testing.T) {
	v := List(Text("a"), Text("b"))
	assert.Equal(t, "a", v.Normalize())
}

func TestNormalizeEmptyList(t *testing.T) {
	assert.Equal(t, "No result returned", List().Normalize())
}

func TestNormalizeListFirstMapWithoutKnownKeys(t *testing.T) {
	v := List(Map(map[string]Value{"title": Text("t"), "url": Text("u")}))
	assert.Equal(t, `{"title": "t", "url": "u"}`, v.Normalize())
}

func TestNormalizeMapPriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		in   Value
		want string
	}{
		{
			name: "text wins over content",
			in:   Map(map[string]Value{"text": Text("t"), "content": Text("c")}),
			want: "t",
		},
		{
			name: "content wins over message",
			in:   Map(map[string]Value{"content": Text("c"), "message": Text("m")}),
			want: "c",
		},
		{
			name: "message wins over result",
			in:   Map(map[string]Value{"message": Text("m"), "result": Text("r")}),
			want: "m",
		},
		{
			name: "result used last",
			in:   Map(map[string]Value{"result": Text("r"), "other": Text("x")}),
			want: "r",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Normalize())
		})
	}
}

func TestNormalizeMapWithoutKnownKeysIsDeterministic(t *testing.T) {
	v := Map(map[string]Value{"zeta": Text("z"), "alpha": Text("a")})
	got := v.Normalize()
	assert.Equal(t, `{"alpha": "a", "zeta": "z"}`, got)
	// Same value must serialize identically every time.
	for i := 0; i < 10; i++ {
		assert.Equal(t, got, v.Normalize())
	}
}

func TestFromAnyRoundTrip(t *testing.T) {
	v := FromAny(map[string]any{
		"text":  "hello",
		"count": float64(3),
		"tags":  []any{"x", "y"},
	})
	assert.Equal(t, KindMap, v.Kind())
	assert.Equal(t, "hello", v.Normalize())
}

func TestFromAnyNumbers(t *testing.T) {
	assert.Equal(t, "3", FromAny(float64(3)).Normalize())
	assert.Equal(t, "3.5", FromAny(3.5).Normalize())
	assert.Equal(t, "true", FromAny(true).Normalize())
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, Text("").IsEmpty())
	assert.True(t, List().IsEmpty())
	assert.True(t, Map(nil).IsEmpty())
	assert.False(t, Text("x").IsEmpty())
	assert.False(t, List(Text("x")).IsEmpty())
}
