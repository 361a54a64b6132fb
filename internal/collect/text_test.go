package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Len(t, []rune(truncate(string(make([]rune, 200)), 100)), 100)
}

func TestEllipsize(t *testing.T) {
	assert.Equal(t, "abc", ellipsize("abc", 3))
	assert.Equal(t, "abc...", ellipsize("abcd", 3))
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"my app":       "My App",
		"MY APP v2":    "My App V2",
		"landing page": "Landing Page",
		"":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, titleCase(in), in)
	}
}
