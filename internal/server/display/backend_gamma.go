package display

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/AvengeMedia/dankdisplay/internal/errdefs"
)

// Gamma returns wlr-gamma-control backed table access, or nil when the
// compositor never advertised the protocol.
func (e *WaylandEnumerator) Gamma() GammaAccess {
	if e.gammaMgr == nil {
		return nil
	}
	return &waylandGamma{e: e}
}

// waylandGamma adapts the per-output gamma controls onto GammaAccess. The
// protocol is write-only, so reads come from a shadow of the last written
// table; before any write the installed table is the identity ramp.
type waylandGamma struct {
	e *WaylandEnumerator
}

func (g *waylandGamma) ReadTable(id DisplayID) (*TransferTable, error) {
	g.e.mu.RLock()
	defer g.e.mu.RUnlock()

	info, ok := g.e.outputs[uint32(id)]
	if !ok || info.gammaControl == nil || info.gammaFailed {
		return nil, errdefs.ErrNoGammaAccess
	}
	if info.shadow != nil {
		return info.shadow.Clone(), nil
	}
	if info.rampSize == 0 {
		return nil, fmt.Errorf("%w: output %d has no ramp size yet", errdefs.ErrNoGammaAccess, id)
	}
	return identityRamp(int(info.rampSize)), nil
}

func (g *waylandGamma) WriteTable(id DisplayID, t *TransferTable) error {
	g.e.mu.RLock()
	info, ok := g.e.outputs[uint32(id)]
	usable := ok && info.gammaControl != nil && !info.gammaFailed
	g.e.mu.RUnlock()
	if !usable {
		return errdefs.ErrNoGammaAccess
	}

	fd, err := TableFd(PackTable(t))
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	if err := info.gammaControl.SetGamma(fd); err != nil {
		return fmt.Errorf("set gamma for output %d: %w", id, err)
	}

	g.e.mu.Lock()
	info.shadow = t.Clone()
	g.e.mu.Unlock()
	return nil
}

// identityRamp builds the linear table an untouched display shows, with
// samples spread evenly across the full 16-bit range.
func identityRamp(size int) *TransferTable {
	t := &TransferTable{
		Red:   make([]uint16, size),
		Green: make([]uint16, size),
		Blue:  make([]uint16, size),
		Peak:  0xFFFF,
	}
	if size == 1 {
		t.Red[0], t.Green[0], t.Blue[0] = 0xFFFF, 0xFFFF, 0xFFFF
		return t
	}
	for i := 0; i < size; i++ {
		v := uint16(uint32(i) * 0xFFFF / uint32(size-1))
		t.Red[i] = v
		t.Green[i] = v
		t.Blue[i] = v
	}
	return t
}
