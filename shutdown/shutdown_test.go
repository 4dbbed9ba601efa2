package shutdown_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plabayo/rama-go/shutdown"
)

func TestIdempotentTrigger(t *testing.T) {
	t.Parallel()
	s := shutdown.New(context.Background())
	s.Trigger()
	s.Trigger() // must not panic or double-close

	select {
	case <-s.Triggered():
	default:
		t.Fatal("expected triggered")
	}
}

func TestGuardAfterTriggerObservesCancellation(t *testing.T) {
	t.Parallel()
	s := shutdown.New(context.Background())
	s.Trigger()

	g := s.Guard()
	select {
	case <-g.Cancelled():
	default:
		t.Fatal("guard minted after trigger should see pre-fired cancellation")
	}
	g.Done()
}

func TestBarrierReleasesAfterAllGuardsDone(t *testing.T) {
	t.Parallel()
	s := shutdown.New(context.Background())

	var finished atomic.Int32
	guards := make([]*shutdown.Guard, 3)
	for i := range guards {
		guards[i] = s.Guard()
	}

	for _, g := range guards {
		go func(g *shutdown.Guard) {
			time.Sleep(50 * time.Millisecond)
			finished.Add(1)
			g.Done()
		}(g)
	}

	err := s.WaitWithLimit(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, int32(3), finished.Load())
}

func TestWaitWithLimitTimesOut(t *testing.T) {
	t.Parallel()
	s := shutdown.New(context.Background())
	g := s.Guard()
	defer g.Done()

	err := s.WaitWithLimit(50 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shutdown.ErrTimeout))
}

// TestGracefulShutdownWithDeadline mirrors the seed scenario: 3 tasks each
// holding a guard and sleeping 200ms; shutdown_with_limit(1s) returns Ok
// after ~200ms. Repeating with 5s-sleeping tasks against a 1s deadline
// returns ErrTimeout after ~1s.
func TestGracefulShutdownWithDeadline(t *testing.T) {
	t.Parallel()

	t.Run("completes before deadline", func(t *testing.T) {
		t.Parallel()
		s := shutdown.New(context.Background())
		for i := 0; i < 3; i++ {
			g := s.Guard()
			go func() {
				time.Sleep(200 * time.Millisecond)
				g.Done()
			}()
		}

		start := time.Now()
		err := s.WaitWithLimit(time.Second)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Less(t, elapsed, 900*time.Millisecond)
	})

	t.Run("times out past deadline", func(t *testing.T) {
		t.Parallel()
		s := shutdown.New(context.Background())
		for i := 0; i < 3; i++ {
			g := s.Guard()
			go func() {
				time.Sleep(5 * time.Second)
				g.Done()
			}()
		}

		start := time.Now()
		err := s.WaitWithLimit(time.Second)
		elapsed := time.Since(start)

		require.ErrorIs(t, err, shutdown.ErrTimeout)
		assert.Less(t, elapsed, 1500*time.Millisecond)
	})
}

func TestDoneIsIdempotent(t *testing.T) {
	t.Parallel()
	s := shutdown.New(context.Background())
	g := s.Guard()
	g.Done()
	g.Done() // must not panic (negative WaitGroup counter)

	err := s.WaitWithLimit(time.Second)
	require.NoError(t, err)
}
