package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anchors(m map[string]float64) AnchorFunc {
	return func(id string) float64 { return m[id] }
}

func positions(out []Output) []float64 {
	var p []float64
	for _, o := range out {
		p = append(p, o.Position)
	}
	return p
}

func TestTick_NoOverlapWithoutFocus(t *testing.T) {
	e := New(DefaultMargin, anchors(map[string]float64{"a": 0, "b": 5, "c": 10}))
	e.SetThreads([]string{"a", "b", "c"})
	e.Mount("a", 40)
	e.Mount("b", 60)
	e.Mount("c", 20)

	out, changed := e.Tick()
	require.True(t, changed)
	require.Len(t, out, 3)
	for i := 0; i+1 < len(out); i++ {
		assert.GreaterOrEqual(t, out[i+1].Position, out[i].Position+out[i].Height+DefaultMargin)
	}
	assert.Equal(t, []float64{0, 50, 120}, positions(out))
}

func TestTick_WaitsForEveryThreadToMount(t *testing.T) {
	e := New(DefaultMargin, anchors(nil))
	e.SetThreads([]string{"a", "b"})
	e.Mount("a", 40)

	_, changed := e.Tick()
	assert.False(t, changed)
	assert.Equal(t, StateMounted, e.State("a"))
	assert.Equal(t, StateUnmounted, e.State("b"))

	e.Mount("b", 10)
	_, changed = e.Tick()
	assert.True(t, changed)
	assert.Equal(t, StatePositioned, e.State("b"))
}

func TestTick_IsIdempotent(t *testing.T) {
	e := New(DefaultMargin, anchors(map[string]float64{"a": 30}))
	e.SetThreads([]string{"a"})
	e.Mount("a", 40)

	calls := 0
	e.Subscribe(func([]Output) { calls++ })

	_, changed := e.Tick()
	assert.True(t, changed)

	e.Invalidate()
	_, changed = e.Tick()
	assert.False(t, changed)

	_, changed = e.Tick()
	assert.False(t, changed)
	assert.Equal(t, 1, calls)
}

func TestTick_FocusedThreadPullsEarlierThreadsUp(t *testing.T) {
	e := New(DefaultMargin, anchors(map[string]float64{"a": 0, "b": 100, "c": 100}))
	e.SetThreads([]string{"a", "b", "c"})
	e.Mount("a", 40)
	e.Mount("b", 60)
	e.Mount("c", 20)

	out, _ := e.Tick()
	assert.Equal(t, []float64{0, 100, 170}, positions(out))

	e.SetFocused([]string{"c"})
	out, changed := e.Tick()
	require.True(t, changed)
	assert.Equal(t, []float64{-70, 30, 100}, positions(out))
	assert.True(t, out[2].Focused)
	assert.LessOrEqual(t, out[1].Position+out[1].Height+DefaultMargin, out[2].Position)
}

func TestTick_FocusBeforeFirstLayout(t *testing.T) {
	e := New(DefaultMargin, anchors(map[string]float64{"a": 0, "b": 30, "c": 200}))
	e.SetThreads([]string{"a", "b", "c"})
	e.SetFocused([]string{"c"})
	e.Mount("a", 40)
	e.Mount("b", 60)
	e.Mount("c", 20)

	out, changed := e.Tick()
	require.True(t, changed)
	assert.Equal(t, []float64{0, 50, 200}, positions(out))
	for i := 0; i+1 < len(out); i++ {
		assert.GreaterOrEqual(t, out[i+1].Position, out[i].Position+out[i].Height+DefaultMargin)
	}
	assert.True(t, out[2].Focused)
}

func TestResize_TriggersRecompute(t *testing.T) {
	e := New(DefaultMargin, anchors(map[string]float64{"a": 0, "b": 0}))
	e.SetThreads([]string{"a", "b"})
	e.Mount("a", 40)
	e.Mount("b", 40)
	out, _ := e.Tick()
	assert.Equal(t, []float64{0, 50}, positions(out))

	e.Resize("a", 100)
	out, changed := e.Tick()
	require.True(t, changed)
	assert.Equal(t, []float64{0, 110}, positions(out))
}
