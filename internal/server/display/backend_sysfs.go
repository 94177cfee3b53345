package display

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/AvengeMedia/dankdisplay/internal/log"
)

// SysfsNative drives built-in panels through /sys/class/backlight, the
// vendor brightness path on this platform. Brightness only.
type SysfsNative struct {
	basePath string

	mu      sync.RWMutex
	devices map[DisplayID]*sysfsDevice
	byName  map[string]*sysfsDevice
}

type sysfsDevice struct {
	name string
	max  int
}

func NewSysfsNative() *SysfsNative {
	s := &SysfsNative{
		basePath: "/sys/class/backlight",
		devices:  make(map[DisplayID]*sysfsDevice),
		byName:   make(map[string]*sysfsDevice),
	}
	s.scan()
	return s
}

func (s *SysfsNative) scan() {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		maxPath := filepath.Join(s.basePath, entry.Name(), "max_brightness")
		data, err := os.ReadFile(maxPath)
		if err != nil {
			continue
		}
		max, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil || max <= 0 {
			log.Debugf("skip backlight %s: invalid max_brightness", entry.Name())
			continue
		}
		s.byName[entry.Name()] = &sysfsDevice{name: entry.Name(), max: max}
		log.Debugf("found backlight device: %s (max=%d)", entry.Name(), max)
	}
}

// Assign binds a backlight device to a session display identifier.
// Typically the single internal panel maps to the eDP output.
func (s *SysfsNative) Assign(id DisplayID, deviceName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev, ok := s.byName[deviceName]
	if !ok {
		return false
	}
	s.devices[id] = dev
	return true
}

// FirstDevice returns any discovered backlight name, for the common
// single-panel laptop case.
func (s *SysfsNative) FirstDevice() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name := range s.byName {
		return name, true
	}
	return "", false
}

func (s *SysfsNative) lookup(id DisplayID) (*sysfsDevice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[id]
	return dev, ok
}

func (s *SysfsNative) Supports(id DisplayID) bool {
	_, ok := s.lookup(id)
	return ok
}

func (s *SysfsNative) Get(id DisplayID) (float64, error) {
	dev, ok := s.lookup(id)
	if !ok {
		return 0, fmt.Errorf("no backlight device for display %d", id)
	}

	data, err := os.ReadFile(filepath.Join(s.basePath, dev.name, "brightness"))
	if err != nil {
		return 0, fmt.Errorf("read brightness: %w", err)
	}
	current, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse brightness: %w", err)
	}
	return float64(current) / float64(dev.max), nil
}

func (s *SysfsNative) Set(id DisplayID, fraction float64) error {
	dev, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("no backlight device for display %d", id)
	}

	value := int(math.Round(clamp01(fraction) * float64(dev.max)))
	// Never drive the panel to hard zero through the vendor path.
	if value < 1 {
		value = 1
	}

	path := filepath.Join(s.basePath, dev.name, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(value)), 0644); err != nil {
		return fmt.Errorf("write brightness: %w", err)
	}
	return nil
}
