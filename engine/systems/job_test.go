package systems

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestJobSystemRunsCallbacks(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	require.NoError(t, err)

	var completed, failed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		fail := i%4 == 0
		require.NoError(t, js.Submit(Job{
			Name: "count",
			Run: func() error {
				if fail {
					return errors.New("boom")
				}
				return nil
			},
			OnComplete: func() { completed.Add(1); wg.Done() },
			OnFailure:  func(error) { failed.Add(1); wg.Done() },
		}))
	}
	wg.Wait()
	require.NoError(t, js.Shutdown())

	require.Equal(t, int32(15), completed.Load())
	require.Equal(t, int32(5), failed.Load())
}

func TestJobSystemShutdownDrainsAndRejects(t *testing.T) {
	js, err := NewJobSystem(1, 4)
	require.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		require.NoError(t, js.Submit(Job{Run: func() error { ran.Add(1); return nil }}))
	}
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	require.Equal(t, int32(4), ran.Load())

	require.ErrorIs(t, js.Submit(Job{Name: "late", Run: func() error { return nil }}), ErrJobSystemClosed)
}

func TestNewJobSystemValidates(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	require.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	require.ErrorIs(t, err, ErrNegativeChannelSize)
}
