package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-texel/engine/renderer/vulkan"
)

type fakeBackend struct {
	calls    []string
	beginErr error
	endErr   error
}

func (f *fakeBackend) Initialize(string) error { f.calls = append(f.calls, "init"); return nil }
func (f *fakeBackend) Shutdown() error         { f.calls = append(f.calls, "shutdown"); return nil }
func (f *fakeBackend) WaitIdle() error         { return nil }
func (f *fakeBackend) Textures() *vulkan.TextureFactory {
	return nil
}

func (f *fakeBackend) BeginFrame() error {
	f.calls = append(f.calls, "begin")
	return f.beginErr
}

func (f *fakeBackend) EndFrame() error {
	f.calls = append(f.calls, "end")
	return f.endErr
}

func TestDrawFrameOrder(t *testing.T) {
	b := &fakeBackend{}
	r := NewWithBackend(b)

	require.NoError(t, r.DrawFrame(0.016, func() error {
		b.calls = append(b.calls, "record")
		return nil
	}))
	require.Equal(t, []string{"begin", "record", "end"}, b.calls)
	require.Equal(t, uint64(1), r.FrameNumber())
}

func TestDrawFrameSubmitsAfterRecordError(t *testing.T) {
	b := &fakeBackend{}
	r := NewWithBackend(b)
	boom := errors.New("boom")

	err := r.DrawFrame(0, func() error { return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"begin", "end"}, b.calls)
}

func TestDrawFrameStopsWhenBeginFails(t *testing.T) {
	boom := errors.New("fence lost")
	b := &fakeBackend{beginErr: boom}
	r := NewWithBackend(b)

	called := false
	err := r.DrawFrame(0, func() error { called = true; return nil })
	require.ErrorIs(t, err, boom)
	require.False(t, called)
	require.Equal(t, []string{"begin"}, b.calls)
	require.Equal(t, uint64(0), r.FrameNumber())
}

func TestDrawFrameReportsEndError(t *testing.T) {
	boom := errors.New("submit failed")
	b := &fakeBackend{endErr: boom}
	r := NewWithBackend(b)

	require.ErrorIs(t, r.DrawFrame(0, nil), boom)
}
