package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRunLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocalRunLocker()

	unlock, err := l.Lock(ctx, "loja-centro")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "loja-centro")
	assert.ErrorIs(t, err, ErrRunInProgress)

	other, err := l.Lock(ctx, "loja-praia")
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := l.Lock(ctx, "loja-centro")
	require.NoError(t, err)
	again()
}
