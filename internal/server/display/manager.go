package display

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/AvengeMedia/dankdisplay/internal/config"
	"github.com/AvengeMedia/dankdisplay/internal/errdefs"
	"github.com/AvengeMedia/dankdisplay/internal/log"
	"github.com/AvengeMedia/dankdisplay/internal/store"
)

// Options carries the platform collaborators. Any of them may be nil; the
// variant selection degrades accordingly.
type Options struct {
	Enumerator Enumerator
	Channel    CommandChannel
	Native     NativeService
	Gamma      GammaAccess
	Surfaces   SurfaceProvider
	Suspend    SuspendSource
	Curve      ValueCurve
}

// Manager owns the live display registry and the control engine. It is the
// explicit context object every component hangs off; there are no package
// globals. One presentation goroutine applies overlay opacity and other
// presentation-state mutations; hardware reads and writes never run there.
type Manager struct {
	cfg  *config.Config
	st   store.Store
	opts Options

	mu       sync.RWMutex
	displays map[DisplayID]*Display

	presentq chan func()
	stopChan chan struct{}
	wg       sync.WaitGroup

	poller *Poller

	interferenceMu  sync.RWMutex
	interferenceSub map[string]chan string
}

func NewManager(cfg *config.Config, st store.Store, opts Options) *Manager {
	m := &Manager{
		cfg:             cfg,
		st:              st,
		opts:            opts,
		displays:        make(map[DisplayID]*Display),
		presentq:        make(chan func(), 128),
		stopChan:        make(chan struct{}),
		interferenceSub: make(map[string]chan string),
	}
	m.poller = newPoller(m, cfg.PollInterval, cfg.InteractiveInterval, cfg.AutoHide)
	return m
}

// Start enumerates the initial display set and launches the presentation
// loop and the polling layer.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.presentLoop()

	m.Reconfigure()

	if m.opts.Enumerator != nil {
		m.opts.Enumerator.OnChange(m.Reconfigure)
	}

	m.poller.start()
}

// post queues fn onto the presentation executor.
func (m *Manager) post(fn func()) {
	select {
	case m.presentq <- fn:
	default:
		log.Warn("presentation queue full, dropping command")
	}
}

func (m *Manager) presentLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopChan:
			return
		case fn := <-m.presentq:
			fn()
		}
	}
}

// Reconfigure resyncs the registry against the enumeration service:
// offline displays are destroyed (closing any overlay they own), new ones
// constructed. Identity migration runs at construction, before the first
// preference read.
func (m *Manager) Reconfigure() {
	var descs []Descriptor
	if m.opts.Enumerator != nil {
		descs = m.opts.Enumerator.Displays()
	}

	// Enumeration-ordered channel numbering must be current before any
	// Detect call below, or hotplugged displays never reach the hardware
	// variant.
	if assigner, ok := m.opts.Channel.(DisplayNumberAssigner); ok {
		for i, desc := range descs {
			assigner.AssignDisplayNumber(desc.ID, i+1)
		}
	}

	m.mu.Lock()
	seen := make(map[DisplayID]bool, len(descs))
	for _, desc := range descs {
		seen[desc.ID] = true
		if _, ok := m.displays[desc.ID]; ok {
			continue
		}
		d := m.newDisplay(desc, descs)
		m.displays[desc.ID] = d
		log.Infof("display %d online: %s (%s, %s)", desc.ID, desc.Name, d.PersistentID, d.Variant)
	}

	for id, d := range m.displays {
		if !seen[id] {
			m.destroyDisplayLocked(d)
			delete(m.displays, id)
			log.Infof("display %d offline: %s", id, d.Name)
		}
	}
	m.mu.Unlock()
}

func (m *Manager) newDisplay(desc Descriptor, current []Descriptor) *Display {
	if m.opts.Native != nil && !desc.HasNativeBrightness {
		desc.HasNativeBrightness = m.opts.Native.Supports(desc.ID)
	}

	pid := PersistentID(desc)
	MigratePreferences(m.st, desc, current)

	d := &Display{
		Descriptor:   desc,
		PersistentID: pid,
		transitions:  make(map[Command]*transition),
	}
	d.Variant = m.selectVariant(desc, pid)

	if d.Variant == VariantSoftwareOnly || d.Variant == VariantSoftwareForced {
		avoidGamma := slices.Contains(m.cfg.AvoidGamma, pid)
		d.dimmer = newSoftwareDimmer(desc, m.opts.Gamma, m.opts.Surfaces,
			m.cfg.BrightnessFloor, m.cfg.AllowZeroBrightness, avoidGamma)
	}

	d.ctl = newController(d, m.opts.Channel, m.opts.Native, m.opts.Curve, m.st,
		m.cfg.DDCTries, m.cfg.DDCExtraDelay, m.post)
	return d
}

// selectVariant is evaluated once at construction and on explicit
// reconfiguration, in fixed preference order.
func (m *Manager) selectVariant(desc Descriptor, pid string) ControlVariant {
	if desc.IsVirtual {
		return VariantSoftwareOnly
	}
	if m.opts.Native != nil && desc.HasNativeBrightness {
		return VariantNative
	}
	if m.opts.Channel != nil && m.opts.Channel.Detect(desc.ID) {
		if m.hardwareDisabled(pid) {
			return VariantSoftwareForced
		}
		return VariantHardware
	}
	return VariantSoftwareOnly
}

func (m *Manager) hardwareDisabled(pid string) bool {
	if slices.Contains(m.cfg.DisableDDC, pid) {
		return true
	}
	disabled, _ := m.st.GetBool(pid + "/control/hardwareDisabled")
	return disabled
}

// SetHardwareDisabled administratively disables or re-enables the command
// channel for one display and reselects its variant.
func (m *Manager) SetHardwareDisabled(id DisplayID, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.displays[m.effectiveIDLocked(id)]
	if !ok {
		return errdefs.ErrDisplayNotFound
	}

	m.st.SetBool(d.PersistentID+"/control/hardwareDisabled", disabled)
	d.Variant = m.selectVariant(d.Descriptor, d.PersistentID)
	if (d.Variant == VariantSoftwareOnly || d.Variant == VariantSoftwareForced) && d.dimmer == nil {
		avoidGamma := slices.Contains(m.cfg.AvoidGamma, d.PersistentID)
		d.dimmer = newSoftwareDimmer(d.Descriptor, m.opts.Gamma, m.opts.Surfaces,
			m.cfg.BrightnessFloor, m.cfg.AllowZeroBrightness, avoidGamma)
	}
	log.Infof("display %d: hardware control disabled=%v, variant now %s", d.ID, disabled, d.Variant)
	return nil
}

func (m *Manager) destroyDisplayLocked(d *Display) {
	d.transMu.Lock()
	for _, t := range d.transitions {
		t.cancel()
	}
	d.transMu.Unlock()

	if d.dimmer != nil {
		d.dimmer.close()
	}
}

func (m *Manager) effectiveIDLocked(id DisplayID) DisplayID {
	if m.opts.Enumerator == nil {
		return id
	}
	if d, ok := m.displays[id]; ok {
		return EffectiveID(m.opts.Enumerator, d.Descriptor)
	}
	return id
}

// EffectiveIdentifier resolves a mirror-set member to the identifier that
// owns pixels.
func (m *Manager) EffectiveIdentifier(id DisplayID) DisplayID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.effectiveIDLocked(id)
}

// PersistentIdentifier returns the stable key for a display.
func (m *Manager) PersistentIdentifier(id DisplayID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.displays[id]
	if !ok {
		return "", errdefs.ErrDisplayNotFound
	}
	return d.PersistentID, nil
}

func (m *Manager) lookup(id DisplayID) (*Display, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.displays[m.effectiveIDLocked(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errdefs.ErrDisplayNotFound, id)
	}
	return d, nil
}

// CurrentValue reads the current fraction of cmd for the display, after
// mirror resolution.
func (m *Manager) CurrentValue(id DisplayID, cmd Command) (float64, error) {
	d, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	if !d.ctl.Supports(cmd) {
		return 0, fmt.Errorf("%w: %s via %s", errdefs.ErrUnsupportedCommand, cmd, d.Variant)
	}
	return d.ctl.CurrentValue(cmd), nil
}

// SetValue applies fraction to cmd, optionally smoothing over time. When
// smoothing is globally disabled or not requested the value applies
// directly and synchronously.
func (m *Manager) SetValue(id DisplayID, cmd Command, fraction float64, smooth, slow bool) error {
	d, err := m.lookup(id)
	if err != nil {
		return err
	}
	fraction = clamp01(fraction)

	if !smooth || !m.cfg.SmoothTransitions || cmd != CmdBrightness {
		return d.ctl.Apply(cmd, fraction, false)
	}

	divisor := m.cfg.StepDivisor
	if slow {
		divisor = m.cfg.SlowStepDivisor
	}

	d.transMu.Lock()
	t, ok := d.transitions[cmd]
	if !ok {
		var suspended func() bool
		if m.opts.Suspend != nil {
			suspended = m.opts.Suspend.Suspended
		}
		t = newTransition(d.ctl, cmd, suspended, m.cfg.StepDelay)
		d.transitions[cmd] = t
	}
	d.transMu.Unlock()

	// The target persists up front; transient steps never touch the store.
	d.ctl.persist(cmd, fraction)

	from := fraction
	if t.Running() {
		from = t.Transient()
	} else {
		from = d.ctl.CurrentValue(cmd)
	}
	t.Request(from, fraction, divisor)
	return nil
}

// controllableDisplays snapshots the registry for the poller, in a
// deterministic order, with mirror-set members collapsed onto their
// canonical display.
func (m *Manager) controllableDisplays() []*Display {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Display, 0, len(m.displays))
	for id, d := range m.displays {
		if m.effectiveIDLocked(id) != id {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Poller exposes the polling layer for subscription and interaction hints.
func (m *Manager) Poller() *Poller {
	return m.poller
}

// GetState reads the current value of every supported command on every
// controllable display. Unlike the poller's cached listing this hits
// the devices, so callers should treat it as a point query.
func (m *Manager) GetState() State {
	displays := m.controllableDisplays()
	listing := make([]Values, len(displays))
	for i, d := range displays {
		values := make(map[Command]float64)
		for _, cmd := range []Command{CmdBrightness, CmdContrast, CmdVolume} {
			if d.ctl.Supports(cmd) {
				values[cmd] = d.ctl.CurrentValue(cmd)
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
	return State{
		Displays:  listing,
		Signature: StructureSignature(displays),
		Empty:     len(listing) == 0,
	}
}

// SubscribeInterference delivers the persistent id of a display whose
// software dimming state keeps diverging from what was written. The UI
// layer prompts the user; the engine has already reset its own state.
func (m *Manager) SubscribeInterference(id string) chan string {
	ch := make(chan string, 4)
	m.interferenceMu.Lock()
	m.interferenceSub[id] = ch
	m.interferenceMu.Unlock()
	return ch
}

func (m *Manager) UnsubscribeInterference(id string) {
	m.interferenceMu.Lock()
	if ch, ok := m.interferenceSub[id]; ok {
		close(ch)
		delete(m.interferenceSub, id)
	}
	m.interferenceMu.Unlock()
}

func (m *Manager) reportInterference(d *Display) {
	log.Warnf("display %d: external gamma interference detected", d.ID)
	m.interferenceMu.RLock()
	for _, ch := range m.interferenceSub {
		select {
		case ch <- d.PersistentID:
		default:
		}
	}
	m.interferenceMu.RUnlock()
}

// Close tears the engine down: poller first so no tick races destruction,
// then every display, then the presentation loop.
func (m *Manager) Close() {
	m.poller.stop()

	m.mu.Lock()
	for id, d := range m.displays {
		m.destroyDisplayLocked(d)
		delete(m.displays, id)
	}
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()

	m.interferenceMu.Lock()
	for _, ch := range m.interferenceSub {
		close(ch)
	}
	m.interferenceSub = make(map[string]chan string)
	m.interferenceMu.Unlock()

	if m.opts.Enumerator != nil {
		m.opts.Enumerator.Close()
	}
}
