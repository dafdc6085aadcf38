package vulkan

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func randomRect(r *rand.Rand, width, height uint32) Rect {
	x0 := uint32(r.Intn(int(width)))
	y0 := uint32(r.Intn(int(height)))
	x1 := x0 + 1 + uint32(r.Intn(int(width-x0)))
	y1 := y0 + 1 + uint32(r.Intn(int(height-y0)))
	return Rect{Start: Point{X: x0, Y: y0}, End: Point{X: x1, Y: y1}}
}

func TestRect(t *testing.T) {
	r := Rect{Start: Point{X: 1, Y: 2}, End: Point{X: 4, Y: 3}}
	require.Equal(t, uint32(3), r.Width())
	require.Equal(t, uint32(1), r.Height())
	require.False(t, r.Empty())
	require.True(t, r.Within(4, 3))
	require.False(t, r.Within(3, 3))

	require.True(t, Rect{Start: Point{X: 2, Y: 2}, End: Point{X: 2, Y: 5}}.Empty())
	require.Equal(t, Rect{End: Point{X: 8, Y: 6}}, FullRect(8, 6))
}

func TestDirtyRegionStartsClean(t *testing.T) {
	var d DirtyRegion
	require.True(t, d.IsEmpty())
	_, ok := d.Rect()
	require.False(t, ok)
}

func TestDirtyRegionUnion(t *testing.T) {
	var d DirtyRegion
	d.Extend(Rect{Start: Point{X: 2, Y: 2}, End: Point{X: 4, Y: 4}})
	d.Extend(Rect{Start: Point{X: 0, Y: 3}, End: Point{X: 3, Y: 8}})

	r, ok := d.Rect()
	require.True(t, ok)
	require.Equal(t, Rect{Start: Point{X: 0, Y: 2}, End: Point{X: 4, Y: 8}}, r)

	d.Clear()
	require.True(t, d.IsEmpty())
}

// The dirty rect always covers every write and never exceeds their bounds.
func TestDirtyRegionCoversWrites(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const width, height = 64, 48

	for iter := 0; iter < 200; iter++ {
		var d DirtyRegion
		writes := make([]Rect, 1+rng.Intn(6))
		for i := range writes {
			writes[i] = randomRect(rng, width, height)
			d.Extend(writes[i])
		}
		got, ok := d.Rect()
		require.True(t, ok)
		require.True(t, got.Within(width, height))

		bounds := writes[0]
		for _, w := range writes {
			require.LessOrEqual(t, got.Start.X, w.Start.X)
			require.LessOrEqual(t, got.Start.Y, w.Start.Y)
			require.GreaterOrEqual(t, got.End.X, w.End.X)
			require.GreaterOrEqual(t, got.End.Y, w.End.Y)
			bounds = bounds.Union(w)
		}
		require.Equal(t, bounds, got)
	}
}
