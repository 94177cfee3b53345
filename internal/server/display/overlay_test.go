package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hookOverlay lets a test inject submits mid-apply, which is when the
// coalescer's single-extra-pass behavior matters.
type hookOverlay struct {
	fakeOverlay
	onSet func(opacity float64)
}

func (h *hookOverlay) SetOpacity(opacity float64) error {
	if h.onSet != nil {
		h.onSet(opacity)
	}
	return h.fakeOverlay.SetOpacity(opacity)
}

func TestOverlayCoalescing(t *testing.T) {
	t.Run("single submit single pass", func(t *testing.T) {
		handle := &fakeOverlay{}
		o := newOverlayState(handle)
		exec := &manualExecutor{}

		o.submit(0.3, exec.post)
		assert.Equal(t, 1, exec.queued())

		exec.drain()
		assert.Equal(t, []float64{0.3}, handle.applied())
	})

	t.Run("burst before the pass collapses to one write", func(t *testing.T) {
		handle := &fakeOverlay{}
		o := newOverlayState(handle)
		exec := &manualExecutor{}

		o.submit(0.3, exec.post)
		o.submit(0.5, exec.post)
		o.submit(0.6, exec.post)
		// Only the first submit scheduled; the rest landed in the slot.
		assert.Equal(t, 1, exec.queued())

		passes := exec.drain()
		assert.Equal(t, 1, passes)
		assert.Equal(t, []float64{0.6}, handle.applied())
	})

	t.Run("submits during apply cost at most one extra pass", func(t *testing.T) {
		handle := &hookOverlay{}
		o := newOverlayState(handle)
		exec := &manualExecutor{}

		first := true
		handle.onSet = func(float64) {
			if !first {
				return
			}
			first = false
			// Two values land while the pass is writing to the device.
			o.submit(0.5, exec.post)
			o.submit(0.6, exec.post)
		}

		o.submit(0.3, exec.post)
		passes := exec.drain()

		// One original pass plus exactly one follow-up, ending on the
		// final value.
		assert.Equal(t, 2, passes)
		assert.Equal(t, []float64{0.3, 0.6}, handle.applied())
	})

	t.Run("final value always wins", func(t *testing.T) {
		handle := &fakeOverlay{}
		o := newOverlayState(handle)
		exec := &manualExecutor{}

		for _, v := range []float64{0.1, 0.9, 0.2, 0.8, 0.45} {
			o.submit(v, exec.post)
		}
		exec.drain()

		applied := handle.applied()
		require.NotEmpty(t, applied)
		assert.Equal(t, 0.45, applied[len(applied)-1])
	})

	t.Run("closed overlay drops submits", func(t *testing.T) {
		handle := &fakeOverlay{}
		o := newOverlayState(handle)
		exec := &manualExecutor{}

		o.close()
		assert.True(t, handle.closed)

		o.submit(0.5, exec.post)
		assert.Equal(t, 0, exec.queued())
	})

	t.Run("close during apply stops the follow-up", func(t *testing.T) {
		handle := &hookOverlay{}
		o := newOverlayState(handle)
		exec := &manualExecutor{}

		first := true
		handle.onSet = func(float64) {
			if !first {
				return
			}
			first = false
			o.submit(0.9, exec.post)
			o.close()
		}

		o.submit(0.3, exec.post)
		exec.drain()

		// The pending 0.9 never reaches the dead handle.
		assert.Equal(t, []float64{0.3}, handle.applied())
	})
}
