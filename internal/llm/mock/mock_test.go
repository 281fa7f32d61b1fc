package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEcho(t *testing.T) {
	c := New()
	out, err := c.Invoke(context.Background(), "sys", "do it\n\nGlossary:\na → b\n\nInput:\n__RT__ hi")
	require.NoError(t, err)
	assert.Equal(t, "__RT__ hi", out)
	assert.Equal(t, 1, c.Calls())
}

func TestStaticAndFunc(t *testing.T) {
	out, err := NewStatic("x|||y").Invoke(context.Background(), "", "u")
	require.NoError(t, err)
	assert.Equal(t, "x|||y", out)

	boom := errors.New("boom")
	_, err = NewFunc(func(string, string) (string, error) { return "", boom }).Invoke(context.Background(), "", "u")
	assert.ErrorIs(t, err, boom)
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New()
	_, err := c.Invoke(ctx, "", "u")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.Calls())
}
