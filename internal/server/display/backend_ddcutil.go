package display

import (
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/AvengeMedia/dankdisplay/internal/errdefs"
	"github.com/AvengeMedia/dankdisplay/internal/log"
)

// DDCUtilChannel shims the command channel onto the external ddcutil tool,
// which owns the actual DDC/CI wire transport. The retry/delay contract of
// CommandChannel lives here; everything below getvcp/setvcp does not.
type DDCUtilChannel struct {
	mu         sync.Mutex
	displayNum map[DisplayID]int

	// runner is swapped out by tests.
	runner func(args ...string) ([]byte, error)
}

func NewDDCUtilChannel() *DDCUtilChannel {
	return &DDCUtilChannel{
		displayNum: make(map[DisplayID]int),
		runner: func(args ...string) ([]byte, error) {
			return exec.Command("ddcutil", args...).Output()
		},
	}
}

// AssignDisplayNumber maps a session display identifier onto a ddcutil
// display number. The manager refreshes the mapping on reconfiguration.
func (c *DDCUtilChannel) AssignDisplayNumber(id DisplayID, num int) {
	c.mu.Lock()
	c.displayNum[id] = num
	c.mu.Unlock()
}

func (c *DDCUtilChannel) number(id DisplayID) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.displayNum[id]
	return n, ok
}

func (c *DDCUtilChannel) Detect(id DisplayID) bool {
	num, ok := c.number(id)
	if !ok {
		return false
	}
	_, _, err := c.readOnce(num, CmdBrightness)
	return err == nil
}

func (c *DDCUtilChannel) readOnce(num int, cmd Command) (current, max uint16, err error) {
	vcp := fmt.Sprintf("%02x", cmd.VCPCode())
	out, err := c.runner("getvcp", vcp, "--brief", "--display", strconv.Itoa(num))
	if err != nil {
		return 0, 0, fmt.Errorf("ddcutil getvcp %s: %w", vcp, err)
	}

	var cur, mx int
	if _, err := fmt.Sscanf(string(out), "VCP "+vcp+" C %d %d", &cur, &mx); err != nil {
		return 0, 0, fmt.Errorf("parse getvcp output %q: %w", string(out), err)
	}
	return uint16(cur), uint16(mx), nil
}

// Read retries up to tries attempts, sleeping minDelay between them for
// displays with slow DDC implementations. The ceiling is hard; exhaustion
// returns ErrReadFailed and the caller falls back to its persisted value.
func (c *DDCUtilChannel) Read(id DisplayID, cmd Command, tries int, minDelay time.Duration) (uint16, uint16, error) {
	num, ok := c.number(id)
	if !ok {
		return 0, 0, fmt.Errorf("%w: display %d has no ddc mapping", errdefs.ErrReadFailed, id)
	}
	if tries <= 0 {
		tries = 1
	}

	var lastErr error
	for attempt := 0; attempt < tries; attempt++ {
		if attempt > 0 && minDelay > 0 {
			time.Sleep(minDelay)
		}
		cur, max, err := c.readOnce(num, cmd)
		if err == nil {
			return cur, max, nil
		}
		lastErr = err
		log.Debugf("ddc read attempt %d/%d failed for display %d: %v", attempt+1, tries, id, err)
	}
	return 0, 0, fmt.Errorf("%w: %v", errdefs.ErrReadFailed, lastErr)
}

func (c *DDCUtilChannel) Write(id DisplayID, cmd Command, raw uint16) error {
	num, ok := c.number(id)
	if !ok {
		return fmt.Errorf("display %d has no ddc mapping", id)
	}
	vcp := fmt.Sprintf("%02x", cmd.VCPCode())
	if _, err := c.runner("setvcp", vcp, strconv.Itoa(int(raw)), "--display", strconv.Itoa(num)); err != nil {
		return fmt.Errorf("ddcutil setvcp %s=%d: %w", vcp, raw, err)
	}
	return nil
}
