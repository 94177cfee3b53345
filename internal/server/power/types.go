package power

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
)

const (
	dbusDest             = "org.freedesktop.login1"
	dbusManagerPath      = "/org/freedesktop/login1"
	dbusManagerInterface = "org.freedesktop.login1.Manager"
)

// State is the suspend-cycle view delivered to subscribers.
type State struct {
	PreparingForSleep bool `json:"preparingForSleep"`
}

// Monitor tracks logind's sleep cycle on the system bus. Suspended
// reports true from the moment PrepareForSleep(true) fires until the
// resume edge, which the brightness layer uses to abort in-flight
// transitions.
type Monitor struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal

	suspended atomic.Bool

	inhibitMu   sync.Mutex
	inhibitFile *os.File

	subMutex    sync.RWMutex
	subscribers map[string]chan State

	stopChan chan struct{}
	sigWG    sync.WaitGroup
}
