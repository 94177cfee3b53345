package display

import (
	"fmt"
	"math"
	"sync"

	"github.com/AvengeMedia/dankdisplay/internal/errdefs"
	"github.com/AvengeMedia/dankdisplay/internal/log"
)

// interferenceThreshold is how many consecutive divergences between what we
// wrote and what we read back are tolerated before we assume another
// process is fighting over the transfer table.
const interferenceThreshold = 3

// readbackTolerance matches the 1/256 sample resolution of the table with
// one sample of slack.
const readbackTolerance = 2.0 / 256.0

// softwareDimmer emulates brightness for displays without a hardware path,
// either by scaling the baseline gamma table or by fading a per-display
// overlay window. The two mechanisms are mutually exclusive per display.
type softwareDimmer struct {
	id         DisplayID
	gamma      GammaAccess
	surfaces   SurfaceProvider
	floor      float64
	allowZero  bool
	useOverlay bool

	mu          sync.Mutex
	baseline    *TransferTable
	overlay     *overlayState
	lastWritten float64
	haveWritten bool
	divergences int
}

func newSoftwareDimmer(d Descriptor, gamma GammaAccess, surfaces SurfaceProvider, floor float64, allowZero, avoidGamma bool) *softwareDimmer {
	s := &softwareDimmer{
		id:        d.ID,
		gamma:     gamma,
		surfaces:  surfaces,
		floor:     floor,
		allowZero: allowZero,
	}
	// Virtual displays have no gamma table; they always dim via overlay.
	s.useOverlay = d.IsVirtual || avoidGamma || gamma == nil
	return s
}

// floorRemap maps [0,1] to [floor,1] so the panel never goes fully black
// unless zero brightness is explicitly allowed.
func (s *softwareDimmer) floorRemap(f float64) float64 {
	if s.allowZero {
		return f
	}
	return s.floor + f*(1-s.floor)
}

func (s *softwareDimmer) floorInvert(v float64) float64 {
	if s.allowZero {
		return v
	}
	if s.floor >= 1 {
		return v
	}
	return clamp01((v - s.floor) / (1 - s.floor))
}

// captureBaseline snapshots the installed transfer table exactly once per
// display lifetime. Every later scale starts from this copy, never from a
// previously scaled table, so repeated dimming cannot compound.
func (s *softwareDimmer) captureBaseline() error {
	if s.baseline != nil {
		return nil
	}
	if s.gamma == nil {
		return errdefs.ErrNoGammaAccess
	}
	t, err := s.gamma.ReadTable(s.id)
	if err != nil {
		return fmt.Errorf("capture baseline table: %w", err)
	}
	base := t.Clone()
	base.Peak = tablePeak(base)
	s.baseline = base
	log.Debugf("display %d: captured baseline table (%d samples, peak=%d)", s.id, len(base.Red), base.Peak)
	return nil
}

func tablePeak(t *TransferTable) uint16 {
	var peak uint16
	for _, v := range t.Red {
		if v > peak {
			peak = v
		}
	}
	for _, v := range t.Green {
		if v > peak {
			peak = v
		}
	}
	for _, v := range t.Blue {
		if v > peak {
			peak = v
		}
	}
	return peak
}

// scaleTable multiplies every sample of the baseline by f. A factor of 1
// returns a bit-identical copy of the baseline.
func scaleTable(base *TransferTable, f float64) *TransferTable {
	if f >= 1 {
		return base.Clone()
	}
	if f < 0 {
		f = 0
	}
	scale := func(in []uint16) []uint16 {
		out := make([]uint16, len(in))
		for i, v := range in {
			out[i] = uint16(math.Round(float64(v) * f))
		}
		return out
	}
	t := &TransferTable{
		Red:   scale(base.Red),
		Green: scale(base.Green),
		Blue:  scale(base.Blue),
	}
	t.Peak = tablePeak(t)
	return t
}

// Apply dims the display to fraction f. Gamma writes happen on the calling
// goroutine; overlay opacity goes through the coalescer onto the
// presentation executor.
func (s *softwareDimmer) Apply(f float64, post func(func())) error {
	f = clamp01(f)
	remapped := s.floorRemap(f)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useOverlay {
		if err := s.ensureOverlayLocked(); err != nil {
			return err
		}
		s.lastWritten = f
		s.haveWritten = true
		s.overlay.submit(1-remapped, post)
		return nil
	}

	if err := s.captureBaseline(); err != nil {
		return err
	}
	if err := s.gamma.WriteTable(s.id, scaleTable(s.baseline, remapped)); err != nil {
		return fmt.Errorf("write scaled table: %w", err)
	}
	s.lastWritten = f
	s.haveWritten = true
	s.divergences = 0
	return nil
}

// Current reads the dimming state back. Gamma mode computes the ratio of
// the installed table's peak to the baseline peak, inverts the floor remap
// and rounds to the table's 1/256 sample resolution.
func (s *softwareDimmer) Current() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useOverlay {
		if !s.haveWritten {
			return 1, nil
		}
		return s.lastWritten, nil
	}

	if err := s.captureBaseline(); err != nil {
		return 0, err
	}
	ratio, err := s.readRatioLocked()
	if err != nil {
		return 0, err
	}
	v := s.floorInvert(ratio)
	return math.Round(v*256) / 256, nil
}

func (s *softwareDimmer) readRatioLocked() (float64, error) {
	installed, err := s.gamma.ReadTable(s.id)
	if err != nil {
		return 0, fmt.Errorf("read installed table: %w", err)
	}
	if s.baseline.Peak == 0 {
		return 1, nil
	}
	return float64(tablePeak(installed)) / float64(s.baseline.Peak), nil
}

// checkInterference is the watchdog step, run from the poll loop while no
// transition is active. Repeated divergence between the last written value
// and the read-back means another process is manipulating the table; after
// enough detections the dimmer reports it and restores the full baseline.
func (s *softwareDimmer) checkInterference() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useOverlay || !s.haveWritten || s.baseline == nil {
		return false
	}

	ratio, err := s.readRatioLocked()
	if err != nil {
		return false
	}

	expected := s.floorRemap(s.lastWritten)
	if math.Abs(ratio-expected) <= readbackTolerance {
		s.divergences = 0
		return false
	}

	s.divergences++
	log.Debugf("display %d: gamma divergence %d/%d (expected %.3f, read %.3f)",
		s.id, s.divergences, interferenceThreshold, expected, ratio)
	if s.divergences < interferenceThreshold {
		return false
	}

	// Conservative recovery: give the panel its full baseline back rather
	// than re-asserting our own dimming against an unknown writer.
	s.divergences = 0
	s.lastWritten = 1
	if err := s.gamma.WriteTable(s.id, s.baseline.Clone()); err != nil {
		log.Warnf("display %d: failed to restore baseline after interference: %v", s.id, err)
	}
	return true
}

func (s *softwareDimmer) ensureOverlayLocked() error {
	if s.overlay != nil {
		return nil
	}
	if s.surfaces == nil {
		return errdefs.ErrNoOverlay
	}
	handle, err := s.surfaces.Create(s.id)
	if err != nil {
		return fmt.Errorf("create overlay: %w", err)
	}
	s.overlay = newOverlayState(handle)
	return nil
}

// close releases the overlay and restores the baseline table if one was
// captured.
func (s *softwareDimmer) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overlay != nil {
		s.overlay.close()
		s.overlay = nil
	}
	if s.baseline != nil && s.haveWritten && !s.useOverlay {
		if err := s.gamma.WriteTable(s.id, s.baseline.Clone()); err != nil {
			log.Debugf("display %d: baseline restore on close failed: %v", s.id, err)
		}
	}
}
