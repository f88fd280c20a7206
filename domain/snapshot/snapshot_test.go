package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDigest(t *testing.T) {
	a := Digest([]byte(`{"schemas":{}}`))
	b := Digest([]byte(`{"schemas":{}}`))
	c := Digest([]byte(`{"schemas":{"Foo":{}}}`))

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSame(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s1 := New("1", "foo:v1", "discovery", []byte("doc"), now)
	s2 := New("2", "foo:v1", "discovery", []byte("doc"), now.Add(time.Hour))
	s3 := New("3", "foo:v1", "openapi", []byte("doc"), now)

	assert.True(t, s1.Same(s2))
	assert.False(t, s1.Same(s3))
	assert.Equal(t, Digest([]byte("doc")), s1.Digest)
}
