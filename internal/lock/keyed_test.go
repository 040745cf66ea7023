package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	k := NewKeyed()

	release, err := k.Acquire(context.Background(), "lot-a")
	require.NoError(t, err)
	release()

	// Reacquirable after release.
	release, err = k.Acquire(context.Background(), "lot-a")
	require.NoError(t, err)
	release()
}

func TestAcquire_BoundedWait(t *testing.T) {
	k := NewKeyed()

	release, err := k.Acquire(context.Background(), "lot-a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(ctx, "lot-a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquire_IndependentKeys(t *testing.T) {
	k := NewKeyed()

	releaseA, err := k.Acquire(context.Background(), "lot-a")
	require.NoError(t, err)
	defer releaseA()

	// Holding lot-a must not block lot-b.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	releaseB, err := k.Acquire(ctx, "lot-b")
	require.NoError(t, err)
	releaseB()
}

func TestRelease_IsIdempotent(t *testing.T) {
	k := NewKeyed()

	release, err := k.Acquire(context.Background(), "lot-a")
	require.NoError(t, err)
	release()
	release() // second call must be a no-op, not a double unlock

	release2, err := k.Acquire(context.Background(), "lot-a")
	require.NoError(t, err)
	release2()
}

func TestEntriesAreReclaimed(t *testing.T) {
	k := NewKeyed()

	for i := 0; i < 100; i++ {
		release, err := k.Acquire(context.Background(), "lot-a")
		require.NoError(t, err)
		release()
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.entries)
}

func TestMutualExclusion(t *testing.T) {
	k := NewKeyed()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(context.Background(), "lot-a")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max, "at most one holder per key at any instant")
}
