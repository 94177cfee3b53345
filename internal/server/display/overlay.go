package display

import (
	"sync"

	"github.com/AvengeMedia/dankdisplay/internal/log"
)

// overlayState coalesces opacity writes for one overlay window. A writer
// publishes into the single pending slot; one in-flight pass drains it on
// the presentation executor, and if another value lands while a pass is
// applying, exactly one more pass is scheduled. The final value always
// wins and the backlog never exceeds one pass.
type overlayState struct {
	handle OverlayHandle

	mu         sync.Mutex
	pending    float64
	hasPending bool
	applying   bool
	closed     bool
}

func newOverlayState(handle OverlayHandle) *overlayState {
	return &overlayState{handle: handle}
}

// submit publishes opacity and schedules a pass through post unless one is
// already in flight.
func (o *overlayState) submit(opacity float64, post func(func())) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.pending = opacity
	o.hasPending = true
	if o.applying {
		o.mu.Unlock()
		return
	}
	o.applying = true
	o.mu.Unlock()

	post(func() { o.applyPass(post) })
}

func (o *overlayState) applyPass(post func(func())) {
	o.mu.Lock()
	if o.closed {
		o.applying = false
		o.mu.Unlock()
		return
	}
	opacity := o.pending
	o.hasPending = false
	handle := o.handle
	o.mu.Unlock()

	if err := handle.SetOpacity(opacity); err != nil {
		log.Warnf("overlay opacity write failed: %v", err)
	}

	o.mu.Lock()
	if o.hasPending && !o.closed {
		o.mu.Unlock()
		post(func() { o.applyPass(post) })
		return
	}
	o.applying = false
	o.mu.Unlock()
}

func (o *overlayState) close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	handle := o.handle
	o.mu.Unlock()

	handle.Close()
}
