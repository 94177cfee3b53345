package display

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AvengeMedia/dankdisplay/internal/log"
)

// valueEpsilon suppresses notifications for sub-perceptual drift between
// polls.
const valueEpsilon = 0.001

type valueKey struct {
	id  DisplayID
	cmd Command
}

// Poller samples the engine on a timer and republishes aggregated snapshots
// to subscribers. The structure signature short-circuits listing rebuilds
// when the display set is unchanged, and per-value epsilon comparison
// bounds notification volume under fast polling.
type Poller struct {
	m *Manager

	interval     time.Duration
	fastInterval time.Duration
	autoHide     bool

	mu       sync.Mutex
	depth    int
	cache    map[valueKey]float64
	lastSig  string
	listing  []Values
	empty    bool
	everSent bool

	ticker   *time.Ticker
	stopChan chan struct{}
	wg       sync.WaitGroup

	subMu       sync.RWMutex
	subscribers map[string]chan State
}

func newPoller(m *Manager, interval, fastInterval time.Duration, autoHide bool) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if fastInterval <= 0 || fastInterval > interval {
		fastInterval = interval / 2
	}
	return &Poller{
		m:            m,
		interval:     interval,
		fastInterval: fastInterval,
		autoHide:     autoHide,
		cache:        make(map[valueKey]float64),
		stopChan:     make(chan struct{}),
		subscribers:  make(map[string]chan State),
	}
}

func (p *Poller) start() {
	p.ticker = time.NewTicker(p.interval)
	p.wg.Add(1)
	go p.run()
}

func (p *Poller) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case <-p.ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) stop() {
	close(p.stopChan)
	if p.ticker != nil {
		p.ticker.Stop()
	}
	p.wg.Wait()

	p.subMu.Lock()
	for _, ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = make(map[string]chan State)
	p.subMu.Unlock()
}

// BeginInteraction shortens the poll interval while a caller (a slider, a
// key repeat) is actively driving values. Calls are reference counted so
// overlapping interactions restore the slow interval only when the last
// one ends.
func (p *Poller) BeginInteraction() {
	p.mu.Lock()
	p.depth++
	first := p.depth == 1
	p.mu.Unlock()
	if first && p.ticker != nil {
		p.ticker.Reset(p.fastInterval)
	}
}

func (p *Poller) EndInteraction() {
	p.mu.Lock()
	if p.depth > 0 {
		p.depth--
	}
	last := p.depth == 0
	p.mu.Unlock()
	if last && p.ticker != nil {
		p.ticker.Reset(p.interval)
	}
}

func (p *Poller) Subscribe(id string) chan State {
	ch := make(chan State, 16)
	p.subMu.Lock()
	p.subscribers[id] = ch
	p.subMu.Unlock()
	return ch
}

func (p *Poller) Unsubscribe(id string) {
	p.subMu.Lock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
	p.subMu.Unlock()
}

func (p *Poller) emit(s State) {
	p.subMu.RLock()
	for _, ch := range p.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
	p.subMu.RUnlock()
}

// StructureSignature derives an equality key over the controllable display
// set and its capabilities. It is compared, never persisted.
func StructureSignature(displays []*Display) string {
	parts := make([]string, 0, len(displays))
	for _, d := range displays {
		cmds := make([]string, 0, 3)
		for _, cmd := range []Command{CmdBrightness, CmdContrast, CmdVolume} {
			if d.ctl.Supports(cmd) {
				cmds = append(cmds, string(cmd))
			}
		}
		parts = append(parts, fmt.Sprintf("%s|%s|%s", d.PersistentID, d.Variant, strings.Join(cmds, ",")))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// tick is one poll pass. At most one aggregated notification leaves per
// tick, regardless of how many values moved.
func (p *Poller) tick() {
	displays := p.m.controllableDisplays()

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(displays) == 0 && p.autoHide {
		// Entering the empty state is itself one notification.
		if !p.empty || !p.everSent {
			p.empty = true
			p.everSent = true
			p.cache = make(map[valueKey]float64)
			p.lastSig = ""
			p.listing = nil
			log.Debug("no controllable displays, publishing empty state")
			p.emit(State{Empty: true})
		}
		return
	}

	changed := false
	if p.empty {
		p.empty = false
		changed = true
	}

	sig := StructureSignature(displays)
	if sig != p.lastSig {
		p.lastSig = sig
		p.rebuildListing(displays)
		changed = true
	}

	// A reconnect keeps the signature (same persistent identity) while the
	// transient id changes; the listing is rebuilt so snapshots never
	// publish a dead identifier.
	if len(p.listing) != len(displays) {
		p.rebuildListing(displays)
		changed = true
	} else {
		for i := range displays {
			if p.listing[i].ID != displays[i].ID {
				p.rebuildListing(displays)
				changed = true
				break
			}
		}
	}

	live := make(map[valueKey]bool)
	for i, d := range displays {
		for cmd := range p.listing[i].Values {
			key := valueKey{id: d.ID, cmd: cmd}
			live[key] = true
			v := d.ctl.CurrentValue(cmd)
			if cached, ok := p.cache[key]; !ok || math.Abs(cached-v) > valueEpsilon {
				changed = true
			}
			p.cache[key] = v
			p.listing[i].Values[cmd] = v
		}

		if d.dimmer != nil && !p.anyTransitionRunning(d) {
			if d.dimmer.checkInterference() {
				p.m.reportInterference(d)
			}
		}
	}
	for key := range p.cache {
		if !live[key] {
			delete(p.cache, key)
		}
	}

	if changed || !p.everSent {
		p.everSent = true
		p.emit(State{Displays: p.snapshotListing(), Signature: sig})
	}
}

func (p *Poller) anyTransitionRunning(d *Display) bool {
	d.transMu.Lock()
	defer d.transMu.Unlock()
	for _, t := range d.transitions {
		if t.Running() {
			return true
		}
	}
	return false
}

func (p *Poller) rebuildListing(displays []*Display) {
	listing := make([]Values, len(displays))
	for i, d := range displays {
		values := make(map[Command]float64)
		for _, cmd := range []Command{CmdBrightness, CmdContrast, CmdVolume} {
			if d.ctl.Supports(cmd) {
				values[cmd] = 0
			}
		}
		listing[i] = Values{
			ID:           d.ID,
			PersistentID: d.PersistentID,
			Name:         d.Name,
			Variant:      d.Variant.String(),
			Values:       values,
		}
	}
	p.listing = listing
}

func (p *Poller) snapshotListing() []Values {
	out := make([]Values, len(p.listing))
	for i, v := range p.listing {
		values := make(map[Command]float64, len(v.Values))
		for k, val := range v.Values {
			values[k] = val
		}
		v.Values = values
		out[i] = v
	}
	return out
}
