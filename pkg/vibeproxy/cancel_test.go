package vibeproxy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CancelOnce(t *testing.T) {
	reg := NewRegistry()
	ctx, release := reg.Create(context.Background(), "r1")
	defer release()
	assert.Equal(t, 1, reg.Len())

	assert.True(t, reg.Cancel("r1"))
	assert.False(t, reg.Cancel("r1"))
	assert.Equal(t, 0, reg.Len())

	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), ErrCancelled)

	_, release2 := reg.Create(context.Background(), "r1")
	defer release2()
	assert.True(t, reg.Cancel("r1"), "a new handle can be cancelled again")
}

func TestRegistry_UnknownID(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.Cancel("missing"))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_CreateOverwrites(t *testing.T) {
	reg := NewRegistry()
	first, releaseFirst := reg.Create(context.Background(), "dup")
	second, releaseSecond := reg.Create(context.Background(), "dup")
	defer releaseSecond()
	assert.Equal(t, 1, reg.Len())

	require.True(t, reg.Cancel("dup"))
	assert.Error(t, second.Err())
	assert.NoError(t, first.Err(), "replaced handle is left running")
	releaseFirst()
}

func TestRegistry_ReleaseOnlyOwnHandle(t *testing.T) {
	reg := NewRegistry()
	_, releaseOld := reg.Create(context.Background(), "id")
	newer, releaseNew := reg.Create(context.Background(), "id")
	defer releaseNew()

	releaseOld()
	assert.Equal(t, 1, reg.Len())
	assert.NoError(t, newer.Err())
	assert.True(t, reg.Cancel("id"))
}

func TestRegistry_Release(t *testing.T) {
	reg := NewRegistry()
	ctx, release := reg.Create(context.Background(), "done")

	release()
	release()
	assert.Equal(t, 0, reg.Len())
	assert.False(t, reg.Cancel("done"))
	assert.Error(t, ctx.Err())
	assert.False(t, errors.Is(context.Cause(ctx), ErrCancelled))
}

func TestRegistry_ParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	reg := NewRegistry()
	ctx, release := reg.Create(parent, "child")
	defer release()

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestRegistry_Concurrent(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, release := reg.Create(context.Background(), id)
			defer release()
			reg.Cancel(id)
		}(string(rune('a' + i%26)))
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Len())
}
