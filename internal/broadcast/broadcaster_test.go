package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvWithin(t *testing.T, r *Receiver[int], d time.Duration) (int, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return r.Recv(ctx)
}

func TestNew_PanicsOnNonPositiveCapacity(t *testing.T) {
	require.Panics(t, func() { New[int](0) })
}

func TestPublish_NoReceiversDrops(t *testing.T) {
	req := require.New(t)
	b := New[int](8)

	req.Equal(0, b.Publish(1))

	r := b.Subscribe()
	defer r.Close()
	_, err := recvWithin(t, r, 20*time.Millisecond)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestPublish_DeliversToEveryReceiverInOrder(t *testing.T) {
	req := require.New(t)
	b := New[int](16)
	r1 := b.Subscribe()
	r2 := b.Subscribe()
	defer r1.Close()
	defer r2.Close()

	for i := 0; i < 5; i++ {
		req.Equal(2, b.Publish(i))
	}

	for _, r := range []*Receiver[int]{r1, r2} {
		for i := 0; i < 5; i++ {
			v, err := recvWithin(t, r, time.Second)
			req.NoError(err)
			req.Equal(i, v)
		}
	}
}

func TestSubscribe_StartsAtNow(t *testing.T) {
	req := require.New(t)
	b := New[int](8)
	early := b.Subscribe()
	defer early.Close()

	b.Publish(1)
	late := b.Subscribe()
	defer late.Close()
	b.Publish(2)

	v, err := recvWithin(t, early, time.Second)
	req.NoError(err)
	req.Equal(1, v)

	v, err = recvWithin(t, late, time.Second)
	req.NoError(err)
	req.Equal(2, v)

	_, err = recvWithin(t, late, 20*time.Millisecond)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestRecv_LaggedReceiverResumesAtOldest(t *testing.T) {
	req := require.New(t)
	b := New[int](4)
	slow := b.Subscribe()
	defer slow.Close()

	for i := 0; i < 10; i++ {
		b.Publish(i)
	}

	_, err := recvWithin(t, slow, time.Second)
	req.ErrorIs(err, ErrLagged)
	var lagged *LaggedError
	req.True(errors.As(err, &lagged))
	req.Equal(uint64(6), lagged.Missed)

	for want := 6; want < 10; want++ {
		v, err := recvWithin(t, slow, time.Second)
		req.NoError(err)
		req.Equal(want, v)
	}
}

func TestRecv_LagDoesNotAffectOtherReceivers(t *testing.T) {
	req := require.New(t)
	b := New[int](2)
	slow := b.Subscribe()
	fast := b.Subscribe()
	defer slow.Close()
	defer fast.Close()

	for i := 0; i < 6; i++ {
		b.Publish(i)
		v, err := recvWithin(t, fast, time.Second)
		req.NoError(err)
		req.Equal(i, v)
	}

	_, err := recvWithin(t, slow, time.Second)
	req.ErrorIs(err, ErrLagged)
}

func TestRecv_WakesOnPublish(t *testing.T) {
	req := require.New(t)
	b := New[int](4)
	r := b.Subscribe()
	defer r.Close()

	got := make(chan int, 1)
	go func() {
		v, err := r.Recv(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	b.Publish(42)

	select {
	case v := <-got:
		req.Equal(42, v)
	case <-time.After(time.Second):
		req.Fail("receiver was not woken by publish")
	}
}

func TestRecv_ContextCancel(t *testing.T) {
	b := New[int](4)
	r := b.Subscribe()
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Recv(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClose_DrainsThenReportsClosed(t *testing.T) {
	req := require.New(t)
	b := New[int](4)
	r := b.Subscribe()

	b.Publish(1)
	b.Close()
	b.Close()

	v, err := recvWithin(t, r, time.Second)
	req.NoError(err)
	req.Equal(1, v)

	_, err = recvWithin(t, r, time.Second)
	req.ErrorIs(err, ErrClosed)
	req.Equal(0, b.Receivers())
	req.Equal(0, b.Publish(2))
}

func TestClose_WakesWaitingReceivers(t *testing.T) {
	b := New[int](4)
	done := make(chan error, 3)
	for i := 0; i < 3; i++ {
		r := b.Subscribe()
		go func() {
			_, err := r.Recv(context.Background())
			done <- err
		}()
	}

	time.Sleep(10 * time.Millisecond)
	b.Close()

	for i := 0; i < 3; i++ {
		select {
		case err := <-done:
			require.ErrorIs(t, err, ErrClosed)
		case <-time.After(time.Second):
			require.Fail(t, "receiver not woken by Close")
		}
	}
}

func TestSubscribe_AfterCloseIsClosed(t *testing.T) {
	b := New[int](4)
	b.Close()

	r := b.Subscribe()
	_, err := r.Recv(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	require.Equal(t, 0, b.Receivers())
}

func TestReceiverClose_Releases(t *testing.T) {
	req := require.New(t)
	b := New[int](4)
	r1 := b.Subscribe()
	r2 := b.Subscribe()
	req.Equal(2, b.Receivers())

	r1.Close()
	r1.Close()
	req.Equal(1, b.Receivers())

	_, err := r1.Recv(context.Background())
	req.ErrorIs(err, ErrClosed)

	req.Equal(1, b.Publish(7))
	v, err := recvWithin(t, r2, time.Second)
	req.NoError(err)
	req.Equal(7, v)
	r2.Close()
}

func TestPublish_ConcurrentProducersShareOneOrder(t *testing.T) {
	const producers, perProducer = 4, 100
	b := New[int](producers * perProducer)
	r1 := b.Subscribe()
	r2 := b.Subscribe()
	defer r1.Close()
	defer r2.Close()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Publish(p*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	read := func(r *Receiver[int]) []int {
		out := make([]int, 0, producers*perProducer)
		for len(out) < producers*perProducer {
			v, err := recvWithin(t, r, time.Second)
			if !assert.NoError(t, err) {
				break
			}
			out = append(out, v)
		}
		return out
	}

	seq1, seq2 := read(r1), read(r2)
	require.Len(t, seq1, producers*perProducer)
	require.Equal(t, seq1, seq2)
}
