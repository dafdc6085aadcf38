package vulkan

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestLockPoolSerializesGroup(t *testing.T) {
	pool := NewVulkanLockPool()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeCall(ImageManagement, func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}

func TestLockPoolPropagatesError(t *testing.T) {
	pool := NewVulkanLockPool()
	boom := errors.New("boom")
	require.ErrorIs(t, pool.SafeCall(BufferManagement, func() error { return boom }), boom)
	require.ErrorIs(t, pool.SafeQueueCall(3, func() error { return boom }), boom)
}
