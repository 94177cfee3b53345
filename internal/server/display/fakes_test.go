package display

import (
	"errors"
	"sync"
	"time"
)

type fakeEnumerator struct {
	mu       sync.Mutex
	descs    []Descriptor
	mirrors  map[DisplayID]DisplayID
	onChange func()
	closed   bool
}

func (e *fakeEnumerator) Displays() []Descriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Descriptor, len(e.descs))
	copy(out, e.descs)
	return out
}

func (e *fakeEnumerator) MirrorTarget(id DisplayID) DisplayID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mirrors[id]
}

func (e *fakeEnumerator) OnChange(fn func()) { e.onChange = fn }
func (e *fakeEnumerator) Close()             { e.closed = true }

func (e *fakeEnumerator) setDisplays(descs []Descriptor) {
	e.mu.Lock()
	e.descs = descs
	e.mu.Unlock()
}

type fakeChannel struct {
	mu        sync.Mutex
	detect    bool
	current   uint16
	max       uint16
	failNext  int
	readCalls int
	writes    []uint16
	writeErr  error
	assigned  map[DisplayID]int
}

func (c *fakeChannel) Detect(DisplayID) bool { return c.detect }

func (c *fakeChannel) AssignDisplayNumber(id DisplayID, num int) {
	c.mu.Lock()
	if c.assigned == nil {
		c.assigned = make(map[DisplayID]int)
	}
	c.assigned[id] = num
	c.mu.Unlock()
}

func (c *fakeChannel) Write(_ DisplayID, _ Command, raw uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, raw)
	c.current = raw
	return nil
}

func (c *fakeChannel) Read(_ DisplayID, _ Command, tries int, _ time.Duration) (uint16, uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for attempt := 0; attempt < tries; attempt++ {
		c.readCalls++
		if c.failNext > 0 {
			c.failNext--
			continue
		}
		return c.current, c.max, nil
	}
	return 0, 0, errors.New("read failed after retries")
}

type fakeNative struct {
	mu       sync.Mutex
	supports map[DisplayID]bool
	value    float64
	getErr   error
	setErr   error
	sets     []float64
}

func (n *fakeNative) Supports(id DisplayID) bool {
	return n.supports[id]
}

func (n *fakeNative) Get(DisplayID) (float64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.getErr != nil {
		return 0, n.getErr
	}
	return n.value, nil
}

func (n *fakeNative) Set(_ DisplayID, fraction float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.setErr != nil {
		return n.setErr
	}
	n.sets = append(n.sets, fraction)
	n.value = fraction
	return nil
}

func (n *fakeNative) setCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sets)
}

func (n *fakeNative) lastSets() []float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]float64, len(n.sets))
	copy(out, n.sets)
	return out
}

type fakeGamma struct {
	mu        sync.Mutex
	installed *TransferTable
	readErr   error
	writeErr  error
	reads     int
	writes    int
}

func (g *fakeGamma) ReadTable(DisplayID) (*TransferTable, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.readErr != nil {
		return nil, g.readErr
	}
	g.reads++
	return g.installed.Clone(), nil
}

func (g *fakeGamma) WriteTable(_ DisplayID, t *TransferTable) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writeErr != nil {
		return g.writeErr
	}
	g.writes++
	g.installed = t.Clone()
	return nil
}

func (g *fakeGamma) table() *TransferTable {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.installed.Clone()
}

type fakeOverlay struct {
	mu        sync.Mutex
	opacities []float64
	setErr    error
	closed    bool
}

func (o *fakeOverlay) SetOpacity(opacity float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.setErr != nil {
		return o.setErr
	}
	o.opacities = append(o.opacities, opacity)
	return nil
}

func (o *fakeOverlay) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

func (o *fakeOverlay) applied() []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]float64, len(o.opacities))
	copy(out, o.opacities)
	return out
}

type fakeSurfaces struct {
	overlay   *fakeOverlay
	createErr error
	created   int
}

func (s *fakeSurfaces) Create(DisplayID) (OverlayHandle, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created++
	return s.overlay, nil
}

type fakeSuspend struct {
	suspended bool
}

func (s *fakeSuspend) Suspended() bool { return s.suspended }

// manualExecutor queues posted tasks so a test can drain them one at a
// time, mimicking the presentation loop.
type manualExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (e *manualExecutor) post(fn func()) {
	e.mu.Lock()
	e.tasks = append(e.tasks, fn)
	e.mu.Unlock()
}

func (e *manualExecutor) runOne() bool {
	e.mu.Lock()
	if len(e.tasks) == 0 {
		e.mu.Unlock()
		return false
	}
	fn := e.tasks[0]
	e.tasks = e.tasks[1:]
	e.mu.Unlock()
	fn()
	return true
}

func (e *manualExecutor) drain() int {
	n := 0
	for e.runOne() {
		n++
	}
	return n
}

func (e *manualExecutor) queued() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

func flatRamp(size int, value uint16) *TransferTable {
	t := &TransferTable{
		Red:   make([]uint16, size),
		Green: make([]uint16, size),
		Blue:  make([]uint16, size),
	}
	for i := 0; i < size; i++ {
		sample := uint16(uint64(value) * uint64(i) / uint64(size-1))
		t.Red[i] = sample
		t.Green[i] = sample
		t.Blue[i] = sample
	}
	t.Peak = tablePeak(t)
	return t
}

func inlinePost(fn func()) { fn() }
