package display

import (
	"fmt"
	"hash/fnv"
	"sync"

	wlclient "github.com/yaslama/go-wayland/wayland/client"

	"github.com/AvengeMedia/dankdisplay/internal/log"
	"github.com/AvengeMedia/dankdisplay/internal/proto/wlr_gamma_control"
)

// WaylandEnumerator lists online outputs by binding every wl_output global
// and collecting its name/description/make/model events. Wayland exposes
// no EDID, serial or mirror topology, so descriptors carry hashed
// vendor/model codes and fall through the identity token precedence to the
// weakest tiers.
type WaylandEnumerator struct {
	display  *wlclient.Display
	registry *wlclient.Registry
	gammaMgr *wlr_gamma_control.ZwlrGammaControlManagerV1

	mu      sync.RWMutex
	outputs map[uint32]*waylandOutput

	changeMu sync.RWMutex
	onChange func()

	stopChan chan struct{}
	wg       sync.WaitGroup
}

type waylandOutput struct {
	registryName uint32
	output       *wlclient.Output
	name         string
	description  string
	make         string
	model        string
	done         bool

	gammaControl *wlr_gamma_control.ZwlrGammaControlV1
	rampSize     uint32
	gammaFailed  bool
	shadow       *TransferTable
}

func NewWaylandEnumerator() (*WaylandEnumerator, error) {
	display, err := wlclient.Connect("")
	if err != nil {
		return nil, fmt.Errorf("connect wayland display: %w", err)
	}

	e := &WaylandEnumerator{
		display:  display,
		outputs:  make(map[uint32]*waylandOutput),
		stopChan: make(chan struct{}),
	}

	if err := e.setupRegistry(); err != nil {
		display.Context().Close()
		return nil, err
	}

	e.wg.Add(1)
	go e.eventDispatcher()

	return e, nil
}

func (e *WaylandEnumerator) setupRegistry() error {
	ctx := e.display.Context()

	registry, err := e.display.GetRegistry()
	if err != nil {
		return fmt.Errorf("failed to get registry: %w", err)
	}
	e.registry = registry

	registry.SetGlobalHandler(func(ev wlclient.RegistryGlobalEvent) {
		switch ev.Interface {
		case wlr_gamma_control.ZwlrGammaControlManagerV1InterfaceName:
			manager := wlr_gamma_control.NewZwlrGammaControlManagerV1(ctx)
			version := ev.Version
			if version > 1 {
				version = 1
			}
			if err := registry.Bind(ev.Name, ev.Interface, version, manager); err != nil {
				log.Errorf("failed to bind gamma control manager: %v", err)
				return
			}
			e.gammaMgr = manager
			log.Debug("gamma control manager bound")
			return
		case "wl_output":
		default:
			return
		}

		output := wlclient.NewOutput(ctx)
		version := ev.Version
		if version > 4 {
			version = 4
		}
		if err := registry.Bind(ev.Name, ev.Interface, version, output); err != nil {
			log.Errorf("failed to bind wl_output: %v", err)
			return
		}

		info := &waylandOutput{registryName: ev.Name, output: output}
		outputID := output.ID()
		log.Debugf("bound wl_output id=%d registry_name=%d", outputID, ev.Name)

		output.SetGeometryHandler(func(ge wlclient.OutputGeometryEvent) {
			e.mu.Lock()
			info.make = ge.Make
			info.model = ge.Model
			e.mu.Unlock()
		})
		output.SetNameHandler(func(ne wlclient.OutputNameEvent) {
			e.mu.Lock()
			info.name = ne.Name
			e.mu.Unlock()
		})
		output.SetDescriptionHandler(func(de wlclient.OutputDescriptionEvent) {
			e.mu.Lock()
			info.description = de.Description
			e.mu.Unlock()
		})
		output.SetDoneHandler(func(wlclient.OutputDoneEvent) {
			e.mu.Lock()
			first := !info.done
			info.done = true
			e.mu.Unlock()
			if first {
				e.fireChange()
			}
		})

		e.mu.Lock()
		e.outputs[outputID] = info
		e.mu.Unlock()

		// Hotplugged outputs get their control here; the startup batch is
		// handled by the sweep below, after the manager global is known.
		if e.gammaMgr != nil {
			e.attachGammaControl(info)
		}
	})

	registry.SetGlobalRemoveHandler(func(ev wlclient.RegistryGlobalRemoveEvent) {
		e.mu.Lock()
		var removed bool
		for id, info := range e.outputs {
			if info.registryName == ev.Name {
				if info.gammaControl != nil {
					_ = info.gammaControl.Destroy()
				}
				delete(e.outputs, id)
				removed = true
				log.Infof("wl_output %d (registry name %d) removed", id, ev.Name)
				break
			}
		}
		e.mu.Unlock()
		if removed {
			e.fireChange()
		}
	})

	if err := e.display.Roundtrip(); err != nil {
		return fmt.Errorf("first roundtrip failed: %w", err)
	}
	if err := e.display.Roundtrip(); err != nil {
		return fmt.Errorf("second roundtrip failed: %w", err)
	}

	if e.gammaMgr != nil {
		e.mu.RLock()
		pending := make([]*waylandOutput, 0, len(e.outputs))
		for _, info := range e.outputs {
			if info.gammaControl == nil {
				pending = append(pending, info)
			}
		}
		e.mu.RUnlock()
		for _, info := range pending {
			e.attachGammaControl(info)
		}
		// One more roundtrip so gamma_size events land before first use.
		if err := e.display.Roundtrip(); err != nil {
			return fmt.Errorf("gamma roundtrip failed: %w", err)
		}
	} else {
		log.Warn("compositor does not expose zwlr_gamma_control_manager_v1, software dimming unavailable")
	}

	e.mu.RLock()
	count := len(e.outputs)
	e.mu.RUnlock()
	log.Infof("wayland enumerator ready, %d outputs", count)
	return nil
}

func (e *WaylandEnumerator) eventDispatcher() {
	defer e.wg.Done()
	ctx := e.display.Context()
	for {
		select {
		case <-e.stopChan:
			return
		default:
			if err := ctx.Dispatch(); err != nil {
				select {
				case <-e.stopChan:
				default:
					log.Errorf("wayland connection error: %v", err)
				}
				return
			}
		}
	}
}

func (e *WaylandEnumerator) fireChange() {
	e.changeMu.RLock()
	fn := e.onChange
	e.changeMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func (e *WaylandEnumerator) Displays() []Descriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()

	descs := make([]Descriptor, 0, len(e.outputs))
	for id, info := range e.outputs {
		if !info.done {
			continue
		}
		name := info.name
		if name == "" {
			name = info.description
		}
		if name == "" {
			name = fmt.Sprintf("output-%d", id)
		}
		descs = append(descs, Descriptor{
			ID:         DisplayID(id),
			Name:       name,
			Vendor:     hash32(info.make),
			Model:      hash32(info.model),
			UnitNumber: UnitNumberUnset,
		})
	}
	return descs
}

// MirrorTarget always reports unmirrored: wayland compositors keep mirror
// topology to themselves and hand us one wl_output per owning head.
func (e *WaylandEnumerator) MirrorTarget(DisplayID) DisplayID { return 0 }

func (e *WaylandEnumerator) OnChange(fn func()) {
	e.changeMu.Lock()
	e.onChange = fn
	e.changeMu.Unlock()
}

// attachGammaControl claims the exclusive gamma control for one output and
// tracks its ramp size as the gamma_size event arrives.
func (e *WaylandEnumerator) attachGammaControl(info *waylandOutput) {
	control, err := e.gammaMgr.GetGammaControl(info.output)
	if err != nil {
		log.Warnf("failed to get gamma control for output %d: %v", info.output.ID(), err)
		return
	}

	control.SetGammaSizeHandler(func(ev wlr_gamma_control.ZwlrGammaControlV1GammaSizeEvent) {
		e.mu.Lock()
		info.rampSize = ev.Size
		info.gammaFailed = false
		e.mu.Unlock()
		log.Debugf("output %d gamma_size=%d", info.output.ID(), ev.Size)
	})
	control.SetFailedHandler(func(wlr_gamma_control.ZwlrGammaControlV1FailedEvent) {
		// Another client took exclusive control, or the output cannot do
		// gamma at all. Writes keep failing until the output reattaches.
		e.mu.Lock()
		info.gammaFailed = true
		info.rampSize = 0
		info.shadow = nil
		e.mu.Unlock()
		log.Warnf("gamma control failed for output %d", info.output.ID())
	})

	e.mu.Lock()
	info.gammaControl = control
	e.mu.Unlock()
}

func (e *WaylandEnumerator) Close() {
	close(e.stopChan)
	if e.display != nil {
		e.display.Context().Close()
	}
	e.wg.Wait()
}
