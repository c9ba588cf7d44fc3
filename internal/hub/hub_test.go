package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvWithin(t *testing.T, sub *Subscription[int]) (int, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return sub.Recv(ctx)
}

func TestPublishReachesEverySubscriberInOrder(t *testing.T) {
	h := New[int](8)
	a := h.Subscribe()
	b := h.Subscribe()

	for i := 1; i <= 3; i++ {
		assert.Equal(t, 2, h.Publish(i))
	}

	for _, sub := range []*Subscription[int]{a, b} {
		for want := 1; want <= 3; want++ {
			got, err := recvWithin(t, sub)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestSubscriberOnlySeesEventsAfterSubscribing(t *testing.T) {
	h := New[int](8)
	h.Publish(1)
	sub := h.Subscribe()
	h.Publish(2)

	got, err := recvWithin(t, sub)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	h := New[int](1)
	for i := 0; i < 1000; i++ {
		assert.Equal(t, 0, h.Publish(i))
	}
}

func TestSlowSubscriberGetsLaggedSignal(t *testing.T) {
	h := New[int](3)
	slow := h.Subscribe()
	fast := h.Subscribe()

	done := make(chan struct{})
	var fastGot []int
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			v, err := recvWithin(t, fast)
			if err != nil {
				return
			}
			fastGot = append(fastGot, v)
		}
	}()

	// The publisher never blocks even though slow never reads.
	for i := 0; i < 10; i++ {
		h.Publish(i)
		time.Sleep(time.Millisecond)
	}
	<-done
	assert.Len(t, fastGot, 10, "a lagging peer must not affect other subscribers")

	_, err := recvWithin(t, slow)
	var lagged *LaggedError
	require.ErrorAs(t, err, &lagged)
	assert.Equal(t, uint64(7), lagged.Count)

	// The newest backlog survives and arrives in order.
	for want := 7; want <= 9; want++ {
		got, err := recvWithin(t, slow)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// And the subscription keeps working.
	h.Publish(42)
	got, err := recvWithin(t, slow)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestCloseDrainsBeforeErrClosed(t *testing.T) {
	h := New[int](4)
	sub := h.Subscribe()
	h.Publish(1)
	h.Publish(2)
	h.Close()

	assert.Equal(t, 0, h.Publish(3), "publish after close is a no-op")

	v, err := recvWithin(t, sub)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = recvWithin(t, sub)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = recvWithin(t, sub)
	assert.ErrorIs(t, err, ErrClosed)

	late := h.Subscribe()
	_, err = recvWithin(t, late)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseWakesBlockedReceiver(t *testing.T) {
	h := New[int](4)
	sub := h.Subscribe()

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Recv(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	h.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Close")
	}
}

func TestRecvHonorsContext(t *testing.T) {
	h := New[int](4)
	sub := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sub.Recv(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSubscriptionCloseUnsubscribes(t *testing.T) {
	h := New[int](4)
	sub := h.Subscribe()
	require.Equal(t, 1, h.Subscribers())

	sub.Close()
	assert.Equal(t, 0, h.Subscribers())
	assert.Equal(t, 0, h.Publish(1))

	_, err := recvWithin(t, sub)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentPublishers(t *testing.T) {
	h := New[int](1000)
	sub := h.Subscribe()

	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h.Publish(i)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 500; i++ {
		_, err := recvWithin(t, sub)
		require.NoError(t, err)
	}
}
