package display

import (
	"math"
	"sync"
	"time"

	"github.com/AvengeMedia/dankdisplay/internal/log"
)

// settleEpsilon is how close the transient value must get to the target
// before the transition snaps and settles.
const settleEpsilon = 0.01

// transition walks one (display, command) value from its current transient
// state toward the persisted target. One transition exists per key at most;
// a new request while running retargets the live stepper instead of
// spawning a second loop. Stepping happens through a cancellable scheduled
// task handle, not a shared timer loop.
type transition struct {
	c         *controller
	cmd       Command
	suspended func() bool
	stepDelay time.Duration

	mu      sync.Mutex
	state   TransitionState
	current float64
	target  float64
	step    float64
	timer   *time.Timer
}

func newTransition(c *controller, cmd Command, suspended func() bool, stepDelay time.Duration) *transition {
	if stepDelay <= 0 {
		stepDelay = 20 * time.Millisecond
	}
	return &transition{
		c:         c,
		cmd:       cmd,
		suspended: suspended,
		stepDelay: stepDelay,
	}
}

// Request starts a transition from `from` toward `target`, or retargets the
// running one in place. The step size is target minus current over the
// divisor (6 for normal speed, 16 for slow).
func (t *transition) Request(from, target float64, divisor int) {
	if divisor <= 0 {
		divisor = 6
	}

	t.mu.Lock()
	t.target = target
	if t.state == TransitionRunning {
		// Single-flight: adjust course, keep the existing stepper.
		t.step = (target - t.current) / float64(divisor)
		t.mu.Unlock()
		return
	}
	t.state = TransitionRunning
	t.current = from
	t.step = (target - from) / float64(divisor)
	t.mu.Unlock()

	t.stepOnce()
}

// Running reports whether a stepping loop is live.
func (t *transition) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == TransitionRunning
}

// Transient returns the in-flight value, distinct from the persisted
// target.
func (t *transition) Transient() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *transition) stepOnce() {
	t.mu.Lock()
	if t.state != TransitionRunning {
		t.mu.Unlock()
		return
	}

	// A sleeping or reconfiguring system aborts cleanly: the transient
	// value becomes the persisted final, and the next resumption starts a
	// fresh transition from there.
	if t.suspended != nil && t.suspended() {
		current := t.current
		t.state = TransitionIdle
		t.mu.Unlock()
		t.c.persist(t.cmd, current)
		log.Debugf("display %d: transition aborted by suspension at %.3f", t.c.d.ID, current)
		return
	}

	next := t.current + t.step
	// Clamp so a step never overshoots the (possibly retargeted) goal.
	if (t.step > 0 && next > t.target) || (t.step < 0 && next < t.target) {
		next = t.target
	}

	if math.Abs(next-t.target) <= settleEpsilon {
		target := t.target
		t.current = target
		t.state = TransitionIdle
		t.mu.Unlock()
		// Settled: one final non-transient apply persists the target.
		if err := t.c.Apply(t.cmd, target, false); err != nil {
			log.Warnf("display %d: settled apply failed: %v", t.c.d.ID, err)
		}
		return
	}

	t.current = next
	t.mu.Unlock()

	// Intermediate steps are transient so they neither persist nor drag
	// UI sliders around mid-flight.
	if err := t.c.Apply(t.cmd, next, true); err != nil {
		log.Debugf("display %d: transient apply failed: %v", t.c.d.ID, err)
	}

	t.mu.Lock()
	if t.state == TransitionRunning {
		t.timer = time.AfterFunc(t.stepDelay, t.stepOnce)
	}
	t.mu.Unlock()
}

// cancel stops scheduling further steps. The last applied transient value
// stays on the device.
func (t *transition) cancel() {
	t.mu.Lock()
	t.state = TransitionIdle
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}
