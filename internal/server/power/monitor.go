package power

import (
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"

	"github.com/AvengeMedia/dankdisplay/internal/log"
)

func NewMonitor() (*Monitor, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	m := &Monitor{
		conn:        conn,
		signals:     make(chan *dbus.Signal, 64),
		subscribers: make(map[string]chan State),
		stopChan:    make(chan struct{}),
	}

	if err := m.acquireSleepInhibitor(); err != nil {
		log.Warnf("sleep inhibitor unavailable: %v", err)
	}

	if err := m.startSignalPump(); err != nil {
		m.releaseSleepInhibitor()
		conn.Close()
		return nil, err
	}

	return m, nil
}

// Suspended reports whether logind announced an imminent suspend that
// has not been followed by a resume edge yet.
func (m *Monitor) Suspended() bool {
	return m.suspended.Load()
}

func (m *Monitor) GetState() State {
	return State{PreparingForSleep: m.suspended.Load()}
}

func (m *Monitor) Subscribe(id string) chan State {
	ch := make(chan State, 16)
	m.subMutex.Lock()
	m.subscribers[id] = ch
	m.subMutex.Unlock()
	return ch
}

func (m *Monitor) Unsubscribe(id string) {
	m.subMutex.Lock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
	m.subMutex.Unlock()
}

func (m *Monitor) notifySubscribers(s State) {
	m.subMutex.RLock()
	for _, ch := range m.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
	m.subMutex.RUnlock()
}

// The delay inhibitor gives us a window to settle device state before
// the kernel actually sleeps.
func (m *Monitor) acquireSleepInhibitor() error {
	m.inhibitMu.Lock()
	defer m.inhibitMu.Unlock()

	if m.inhibitFile != nil {
		return nil
	}
	obj := m.conn.Object(dbusDest, dbusManagerPath)

	var fd dbus.UnixFD
	call := obj.Call(dbusManagerInterface+".Inhibit", 0,
		"sleep", "dankdisplay", "Settle display state before suspend", "delay")
	if call.Err != nil {
		return call.Err
	}
	if err := call.Store(&fd); err != nil {
		return err
	}
	f := os.NewFile(uintptr(fd), "logind-sleep-inhibit")
	if f == nil {
		return fmt.Errorf("failed to wrap inhibitor fd")
	}
	m.inhibitFile = f
	return nil
}

func (m *Monitor) releaseSleepInhibitor() {
	m.inhibitMu.Lock()
	f := m.inhibitFile
	m.inhibitFile = nil
	m.inhibitMu.Unlock()
	if f != nil {
		_ = f.Close()
	}
}

func (m *Monitor) handleSignal(sig *dbus.Signal) {
	if sig.Name != dbusManagerInterface+".PrepareForSleep" {
		return
	}
	if len(sig.Body) == 0 {
		return
	}
	preparing, _ := sig.Body[0].(bool)

	if preparing {
		log.Debug("preparing for sleep")
		m.suspended.Store(true)
		// In-flight transitions notice the flag on their next step;
		// release the inhibitor so the system can actually sleep.
		m.releaseSleepInhibitor()
	} else {
		log.Debug("resumed from sleep")
		m.suspended.Store(false)
		_ = m.acquireSleepInhibitor()
	}

	m.notifySubscribers(State{PreparingForSleep: preparing})
}

func (m *Monitor) startSignalPump() error {
	m.conn.Signal(m.signals)

	if err := m.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbusManagerPath),
		dbus.WithMatchInterface(dbusManagerInterface),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		m.conn.RemoveSignal(m.signals)
		return err
	}

	m.sigWG.Add(1)
	go func() {
		defer m.sigWG.Done()
		for {
			select {
			case <-m.stopChan:
				return
			case sig, ok := <-m.signals:
				if !ok {
					return
				}
				if sig == nil {
					continue
				}
				m.handleSignal(sig)
			}
		}
	}()
	return nil
}

func (m *Monitor) stopSignalPump() {
	if m.conn == nil {
		return
	}
	_ = m.conn.RemoveMatchSignal(
		dbus.WithMatchObjectPath(dbusManagerPath),
		dbus.WithMatchInterface(dbusManagerInterface),
		dbus.WithMatchMember("PrepareForSleep"),
	)
	m.conn.RemoveSignal(m.signals)
	close(m.signals)
	m.sigWG.Wait()
}

func (m *Monitor) Close() {
	close(m.stopChan)
	m.stopSignalPump()
	m.releaseSleepInhibitor()

	m.subMutex.Lock()
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = make(map[string]chan State)
	m.subMutex.Unlock()

	if m.conn != nil {
		m.conn.Close()
	}
}
