package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/AvengeMedia/dankdisplay/internal/errdefs"
	"github.com/AvengeMedia/dankdisplay/internal/log"
	"github.com/AvengeMedia/dankdisplay/internal/store"
)

// controller dispatches reads and writes for one display according to its
// control variant. Hardware access is serialized by a per-display mutex so
// no two channel operations are ever in flight for the same panel.
type controller struct {
	d       *Display
	channel CommandChannel
	native  NativeService
	curve   ValueCurve
	st      store.Store

	tries      int
	extraDelay time.Duration
	post       func(func())

	mu          sync.Mutex
	lastApplied map[Command]float64
	haveApplied map[Command]bool
}

func newController(d *Display, channel CommandChannel, native NativeService, curve ValueCurve, st store.Store, tries int, extraDelay time.Duration, post func(func())) *controller {
	if curve == nil {
		curve = LinearCurve{}
	}
	return &controller{
		d:           d,
		channel:     channel,
		native:      native,
		curve:       curve,
		st:          st,
		tries:       tries,
		extraDelay:  extraDelay,
		post:        post,
		lastApplied: make(map[Command]float64),
		haveApplied: make(map[Command]bool),
	}
}

// Supports reports whether the display's variant can control cmd at all.
// Native exposes brightness only; pure software cannot emulate contrast or
// volume.
func (c *controller) Supports(cmd Command) bool {
	switch c.d.Variant {
	case VariantHardware:
		return cmd == CmdBrightness || cmd == CmdContrast || cmd == CmdVolume
	default:
		return cmd == CmdBrightness
	}
}

// persist records fraction as the stored target for cmd. touched marks the
// display as explicitly configured by the user, which the identity
// migration heuristic weighs heavily.
func (c *controller) persist(cmd Command, fraction float64) {
	c.st.SetFloat(prefKey(c.d.PersistentID, cmd, "value"), fraction)
	c.st.SetBool(prefKey(c.d.PersistentID, cmd, "touched"), true)
}

// persisted returns the stored value for cmd, defaulting to full.
func (c *controller) persisted(cmd Command) float64 {
	if v, ok := c.st.GetFloat(prefKey(c.d.PersistentID, cmd, "value")); ok {
		return clamp01(v)
	}
	return 1
}

// Apply writes fraction to the device. Transient applications are the
// intermediate steps of a smooth transition; they skip persistence so the
// settled value is the only one stored. Re-applying an identical fraction
// is a no-op beyond the equality check.
func (c *controller) Apply(cmd Command, fraction float64, transient bool) error {
	fraction = clamp01(fraction)

	if !c.Supports(cmd) {
		return fmt.Errorf("%w: %s via %s", errdefs.ErrUnsupportedCommand, cmd, c.d.Variant)
	}

	if !transient {
		c.persist(cmd, fraction)
	}

	c.mu.Lock()
	if c.haveApplied[cmd] && c.lastApplied[cmd] == fraction {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// A dummy display accepts persisted values but drives no hardware.
	if c.d.IsDummy {
		c.noteApplied(cmd, fraction)
		return nil
	}

	var err error
	switch c.d.Variant {
	case VariantNative:
		err = c.native.Set(c.d.ID, fraction)
	case VariantHardware:
		err = c.writeHardware(cmd, fraction)
	case VariantSoftwareOnly, VariantSoftwareForced:
		err = c.d.dimmer.Apply(fraction, c.post)
	}
	if err != nil {
		return err
	}

	c.noteApplied(cmd, fraction)
	return nil
}

func (c *controller) noteApplied(cmd Command, fraction float64) {
	c.mu.Lock()
	c.lastApplied[cmd] = fraction
	c.haveApplied[cmd] = true
	c.mu.Unlock()
}

func (c *controller) writeHardware(cmd Command, fraction float64) error {
	max := c.maxForCommand(cmd)
	raw := c.curve.ToRaw(fraction, max)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel.Write(c.d.ID, cmd, raw)
}

// maxForCommand returns the channel-native maximum, cached after the first
// successful read.
func (c *controller) maxForCommand(cmd Command) uint16 {
	if v, ok := c.st.GetInt(prefKey(c.d.PersistentID, cmd, "max")); ok && v > 0 {
		return uint16(v)
	}
	return 100
}

// CurrentValue reads the device's current fraction. Transient hardware
// failures are recovered by retry inside the channel; once the retry
// ceiling is exhausted the last persisted value is returned instead of an
// error, so callers always get a usable (possibly stale) reading.
func (c *controller) CurrentValue(cmd Command) float64 {
	if !c.Supports(cmd) || c.d.IsDummy {
		return c.persisted(cmd)
	}

	switch c.d.Variant {
	case VariantNative:
		v, err := c.native.Get(c.d.ID)
		if err != nil {
			log.Debugf("display %d: native read failed, using persisted: %v", c.d.ID, err)
			return c.persisted(cmd)
		}
		return clamp01(v)

	case VariantHardware:
		c.mu.Lock()
		cur, max, err := c.channel.Read(c.d.ID, cmd, c.tries, c.extraDelay)
		c.mu.Unlock()
		if err != nil {
			log.Debugf("display %d: %s read failed after %d attempts, using persisted: %v",
				c.d.ID, cmd, c.tries, err)
			return c.persisted(cmd)
		}
		if max > 0 {
			c.st.SetInt(prefKey(c.d.PersistentID, cmd, "max"), int(max))
		}
		return c.curve.FromRaw(cur, max)

	default:
		v, err := c.d.dimmer.Current()
		if err != nil {
			return c.persisted(cmd)
		}
		return v
	}
}
