package display

import (
	"sync"
	"time"
)

// Command identifies a controllable display setting.
type Command string

const (
	CmdBrightness Command = "brightness"
	CmdContrast   Command = "contrast"
	CmdVolume     Command = "volume"
)

// VCPCode returns the DDC/CI feature code for the command.
func (c Command) VCPCode() byte {
	switch c {
	case CmdBrightness:
		return 0x10
	case CmdContrast:
		return 0x12
	case CmdVolume:
		return 0x62
	}
	return 0
}

// DisplayID is the transient per-session display handle. It is only valid
// until the next full reconfiguration.
type DisplayID uint32

// ControlVariant selects how values reach the panel. It is decided once at
// display construction and on explicit reconfiguration, never probed at
// call time.
type ControlVariant int

const (
	// VariantNative talks to a vendor brightness service. Brightness only.
	VariantNative ControlVariant = iota
	// VariantHardware drives the DDC-style command channel.
	VariantHardware
	// VariantSoftwareOnly emulates dimming because no hardware path exists.
	VariantSoftwareOnly
	// VariantSoftwareForced emulates dimming although hardware control
	// exists, because the user disabled it.
	VariantSoftwareForced
)

func (v ControlVariant) String() string {
	switch v {
	case VariantNative:
		return "native"
	case VariantHardware:
		return "hardware"
	case VariantSoftwareOnly:
		return "software"
	case VariantSoftwareForced:
		return "softwareForced"
	}
	return "unknown"
}

// TransitionState tracks the smooth-stepping loop of one (display, command).
type TransitionState int

const (
	TransitionIdle TransitionState = iota
	TransitionRunning
)

// UnitNumberUnset is the platform sentinel for "no stable unit number".
const UnitNumberUnset uint32 = 0xFFFFFFFF

// Descriptor carries the hardware identity of one online output as reported
// by the enumeration service. Vendor, Model and Serial feed identity
// derivation only, never control.
type Descriptor struct {
	ID           DisplayID
	Name         string
	Vendor       uint32
	Model        uint32
	Serial       uint32
	FirmwareUUID string
	UnitNumber   uint32

	IsVirtual bool
	IsDummy   bool
	Mirrored  bool

	HasNativeBrightness bool
}

// TransferTable is the per-channel gamma lookup table of one display.
// Peak caches the largest sample so read-back does not rescan the curves.
type TransferTable struct {
	Red   []uint16
	Green []uint16
	Blue  []uint16
	Peak  uint16
}

// Clone returns a deep copy.
func (t *TransferTable) Clone() *TransferTable {
	c := &TransferTable{
		Red:   make([]uint16, len(t.Red)),
		Green: make([]uint16, len(t.Green)),
		Blue:  make([]uint16, len(t.Blue)),
		Peak:  t.Peak,
	}
	copy(c.Red, t.Red)
	copy(c.Green, t.Green)
	copy(c.Blue, t.Blue)
	return c
}

// Equal reports bit-identical tables.
func (t *TransferTable) Equal(o *TransferTable) bool {
	if len(t.Red) != len(o.Red) || len(t.Green) != len(o.Green) || len(t.Blue) != len(o.Blue) {
		return false
	}
	for i := range t.Red {
		if t.Red[i] != o.Red[i] {
			return false
		}
	}
	for i := range t.Green {
		if t.Green[i] != o.Green[i] {
			return false
		}
	}
	for i := range t.Blue {
		if t.Blue[i] != o.Blue[i] {
			return false
		}
	}
	return true
}

// Enumerator is the platform display-listing service.
type Enumerator interface {
	// Displays lists descriptors for every currently online output.
	Displays() []Descriptor
	// MirrorTarget returns the identifier owning pixels for a mirrored
	// display, or 0 when the display is not mirrored.
	MirrorTarget(id DisplayID) DisplayID
	// OnChange registers a callback fired after any output topology change.
	OnChange(fn func())
	Close()
}

// CommandChannel is the DDC-style hardware control capability. The wire
// transport itself lives outside this daemon; implementations are thin
// shims over it.
type CommandChannel interface {
	// Detect reports whether the channel can reach the display at all.
	Detect(id DisplayID) bool
	Write(id DisplayID, cmd Command, raw uint16) error
	// Read returns the (current, max) pair, retrying up to tries attempts
	// with minDelay between them.
	Read(id DisplayID, cmd Command, tries int, minDelay time.Duration) (current, max uint16, err error)
}

// DisplayNumberAssigner is implemented by command channels that address
// displays through an enumeration-ordered number instead of the session
// identifier. The manager refreshes the mapping on every reconfiguration.
type DisplayNumberAssigner interface {
	AssignDisplayNumber(id DisplayID, num int)
}

// NativeService is the vendor brightness service. Fractions are 0..1.
type NativeService interface {
	Supports(id DisplayID) bool
	Get(id DisplayID) (float64, error)
	Set(id DisplayID, fraction float64) error
}

// GammaAccess reads and writes a display's color transfer table.
type GammaAccess interface {
	ReadTable(id DisplayID) (*TransferTable, error)
	WriteTable(id DisplayID, t *TransferTable) error
}

// OverlayHandle is one per-display dimming surface.
type OverlayHandle interface {
	SetOpacity(opacity float64) error
	Close()
}

// SurfaceProvider creates full-screen, input-transparent, always-on-top
// overlay windows pinned to a display.
type SurfaceProvider interface {
	Create(id DisplayID) (OverlayHandle, error)
}

// SuspendSource reports whether the system is sleeping or mid display
// reconfiguration. The transition scheduler checks it before every step.
type SuspendSource interface {
	Suspended() bool
}

// ValueCurve converts between 0..1 fractions and channel-native integers.
// The exact remap/invert/min/max semantics are display-specific, so the
// curve is injected rather than hardcoded.
type ValueCurve interface {
	ToRaw(fraction float64, max uint16) uint16
	FromRaw(current, max uint16) float64
}

// LinearCurve maps fractions proportionally onto 0..max.
type LinearCurve struct{}

func (LinearCurve) ToRaw(fraction float64, max uint16) uint16 {
	if max == 0 {
		max = 100
	}
	v := fraction * float64(max)
	if v < 0 {
		v = 0
	}
	if v > float64(max) {
		v = float64(max)
	}
	return uint16(v + 0.5)
}

func (LinearCurve) FromRaw(current, max uint16) float64 {
	if max == 0 {
		return 0
	}
	f := float64(current) / float64(max)
	if f > 1 {
		f = 1
	}
	return f
}

// Display is one physical output under management.
type Display struct {
	Descriptor

	PersistentID string
	Variant      ControlVariant

	ctl    *controller
	dimmer *softwareDimmer

	transMu     sync.Mutex
	transitions map[Command]*transition
}

// Values is the per-display slice of a poll snapshot.
type Values struct {
	ID           DisplayID           `json:"id"`
	PersistentID string              `json:"persistentId"`
	Name         string              `json:"name"`
	Variant      string              `json:"variant"`
	Values       map[Command]float64 `json:"values"`
}

// State is the aggregated snapshot the polling layer publishes.
type State struct {
	Displays  []Values `json:"displays"`
	Signature string   `json:"-"`
	Empty     bool     `json:"empty"`
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
