package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedia_RoundTrip(t *testing.T) {
	env, _ := createTestEnv(t)

	env.SaveImage("mxc://example.org/avatar", []byte("image-bytes"))
	assert.Equal(t, []byte("image-bytes"), env.Image("mxc://example.org/avatar"))
}

func TestMedia_IgnoresEmpty(t *testing.T) {
	env, _ := createTestEnv(t)

	env.SaveImage("", []byte("x"))
	env.SaveImage("mxc://example.org/empty", nil)

	assert.Nil(t, env.Image(""))
	assert.Nil(t, env.Image("mxc://example.org/empty"))
}

func TestMedia_Missing(t *testing.T) {
	env, _ := createTestEnv(t)
	assert.Nil(t, env.Image("mxc://example.org/none"))
}
