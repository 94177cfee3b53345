package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvengeMedia/dankdisplay/internal/config"
	"github.com/AvengeMedia/dankdisplay/internal/store"
)

// pollFixture builds a manager around fakes without starting its
// goroutines; ticks are driven by hand.
func pollFixture(t *testing.T, descs []Descriptor) (*Manager, *fakeEnumerator, *fakeNative) {
	t.Helper()
	enum := &fakeEnumerator{descs: descs}
	native := &fakeNative{value: 0.5, supports: map[DisplayID]bool{}}
	for _, d := range descs {
		native.supports[d.ID] = true
	}

	cfg := config.Default()
	m := NewManager(cfg, store.NewMemStore(), Options{
		Enumerator: enum,
		Native:     native,
	})
	m.Reconfigure()
	return m, enum, native
}

func drainStates(ch chan State) []State {
	var out []State
	for {
		select {
		case s := <-ch:
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestPoller_InitialSnapshotThenSilence(t *testing.T) {
	m, _, _ := pollFixture(t, []Descriptor{{ID: 1, Name: "eDP-1", HasNativeBrightness: true}})
	p := m.Poller()

	ch := p.Subscribe("t")
	defer p.Unsubscribe("t")

	p.tick()
	states := drainStates(ch)
	require.Len(t, states, 1)
	require.Len(t, states[0].Displays, 1)
	assert.InDelta(t, 0.5, states[0].Displays[0].Values[CmdBrightness], 1e-9)

	// Nothing changed: the next ticks emit nothing.
	p.tick()
	p.tick()
	assert.Empty(t, drainStates(ch))
}

func TestPoller_EpsilonSuppression(t *testing.T) {
	m, _, native := pollFixture(t, []Descriptor{{ID: 1, Name: "eDP-1", HasNativeBrightness: true}})
	p := m.Poller()
	ch := p.Subscribe("t")
	defer p.Unsubscribe("t")

	p.tick()
	drainStates(ch)

	// Sub-epsilon drift stays silent.
	native.mu.Lock()
	native.value = 0.5005
	native.mu.Unlock()
	p.tick()
	assert.Empty(t, drainStates(ch))

	// A real change notifies once.
	native.mu.Lock()
	native.value = 0.7
	native.mu.Unlock()
	p.tick()
	states := drainStates(ch)
	require.Len(t, states, 1)
	assert.InDelta(t, 0.7, states[0].Displays[0].Values[CmdBrightness], 1e-9)
}

func TestPoller_OneNotificationPerTick(t *testing.T) {
	m, _, native := pollFixture(t, []Descriptor{
		{ID: 1, Name: "eDP-1", HasNativeBrightness: true},
		{ID: 2, Name: "DP-1", HasNativeBrightness: true},
	})
	p := m.Poller()
	ch := p.Subscribe("t")
	defer p.Unsubscribe("t")

	p.tick()
	drainStates(ch)

	// Both displays change; still a single aggregated snapshot.
	native.mu.Lock()
	native.value = 0.9
	native.mu.Unlock()
	p.tick()
	states := drainStates(ch)
	require.Len(t, states, 1)
	assert.Len(t, states[0].Displays, 2)
}

func TestPoller_EmptyStateEdge(t *testing.T) {
	m, enum, _ := pollFixture(t, []Descriptor{{ID: 1, Name: "eDP-1", HasNativeBrightness: true}})
	p := m.Poller()
	ch := p.Subscribe("t")
	defer p.Unsubscribe("t")

	p.tick()
	drainStates(ch)

	// All displays vanish. One empty notification on the edge, silence
	// while empty persists.
	enum.setDisplays(nil)
	m.Reconfigure()
	p.tick()
	states := drainStates(ch)
	require.Len(t, states, 1)
	assert.True(t, states[0].Empty)

	p.tick()
	p.tick()
	assert.Empty(t, drainStates(ch))

	// Displays return: full snapshot again.
	enum.setDisplays([]Descriptor{{ID: 1, Name: "eDP-1", HasNativeBrightness: true}})
	m.Reconfigure()
	p.tick()
	states = drainStates(ch)
	require.Len(t, states, 1)
	assert.False(t, states[0].Empty)
	assert.Len(t, states[0].Displays, 1)
}

func TestPoller_SignatureShortCircuit(t *testing.T) {
	m, enum, _ := pollFixture(t, []Descriptor{{ID: 1, Name: "eDP-1", HasNativeBrightness: true}})
	p := m.Poller()
	ch := p.Subscribe("t")
	defer p.Unsubscribe("t")

	p.tick()
	first := drainStates(ch)
	require.Len(t, first, 1)
	sig := first[0].Signature
	assert.NotEmpty(t, sig)

	// A topology change rebuilds the listing and emits.
	enum.setDisplays([]Descriptor{
		{ID: 1, Name: "eDP-1", HasNativeBrightness: true},
		{ID: 2, Name: "HDMI-A-1", HasNativeBrightness: true},
	})
	m.Reconfigure()
	p.tick()
	states := drainStates(ch)
	require.Len(t, states, 1)
	assert.NotEqual(t, sig, states[0].Signature)
	assert.Len(t, states[0].Displays, 2)
}

func TestPoller_ReconnectRefreshesTransientID(t *testing.T) {
	desc := Descriptor{ID: 1, Name: "DP-1", Vendor: 4, Model: 9, Serial: 77, HasNativeBrightness: true}
	m, enum, native := pollFixture(t, []Descriptor{desc})
	p := m.Poller()
	ch := p.Subscribe("t")
	defer p.Unsubscribe("t")

	p.tick()
	first := drainStates(ch)
	require.Len(t, first, 1)
	assert.Equal(t, DisplayID(1), first[0].Displays[0].ID)

	// The same panel reconnects under a new session identifier.
	reborn := desc
	reborn.ID = 2
	native.mu.Lock()
	native.supports[2] = true
	native.mu.Unlock()
	enum.setDisplays([]Descriptor{reborn})
	m.Reconfigure()

	p.tick()
	states := drainStates(ch)
	require.Len(t, states, 1)
	require.Len(t, states[0].Displays, 1)
	assert.Equal(t, DisplayID(2), states[0].Displays[0].ID)

	// Same physical display, same structure.
	assert.Equal(t, first[0].Signature, states[0].Signature)
	assert.Equal(t, first[0].Displays[0].PersistentID, states[0].Displays[0].PersistentID)

	// The published identifier is actionable.
	require.NoError(t, m.SetValue(2, CmdBrightness, 0.4, false, false))
}

func TestPoller_InteractionDepth(t *testing.T) {
	m, _, _ := pollFixture(t, []Descriptor{{ID: 1, Name: "eDP-1", HasNativeBrightness: true}})
	p := m.Poller()

	// Reference counted: nested interactions only restore the slow
	// interval when the outermost one ends. Without a live ticker this
	// exercises the bookkeeping alone.
	p.BeginInteraction()
	p.BeginInteraction()
	p.EndInteraction()
	p.mu.Lock()
	assert.Equal(t, 1, p.depth)
	p.mu.Unlock()

	p.EndInteraction()
	p.mu.Lock()
	assert.Equal(t, 0, p.depth)
	p.mu.Unlock()

	// Unbalanced End never goes negative.
	p.EndInteraction()
	p.mu.Lock()
	assert.Equal(t, 0, p.depth)
	p.mu.Unlock()
}

func TestStructureSignature(t *testing.T) {
	st := store.NewMemStore()
	mk := func(id DisplayID, pid string, variant ControlVariant) *Display {
		d := &Display{
			Descriptor:   Descriptor{ID: id},
			PersistentID: pid,
			Variant:      variant,
			transitions:  make(map[Command]*transition),
		}
		d.ctl = newController(d, &fakeChannel{}, nil, nil, st, 1, 0, inlinePost)
		return d
	}

	a := mk(1, "a-1-1-x", VariantHardware)
	b := mk(2, "b-2-2-y", VariantSoftwareOnly)

	t.Run("order independent", func(t *testing.T) {
		assert.Equal(t,
			StructureSignature([]*Display{a, b}),
			StructureSignature([]*Display{b, a}))
	})

	t.Run("variant changes the signature", func(t *testing.T) {
		sig := StructureSignature([]*Display{a})
		a2 := mk(1, "a-1-1-x", VariantSoftwareForced)
		assert.NotEqual(t, sig, StructureSignature([]*Display{a2}))
	})

	t.Run("identity changes the signature", func(t *testing.T) {
		sig := StructureSignature([]*Display{a})
		a2 := mk(1, "a-1-1-z", VariantHardware)
		assert.NotEqual(t, sig, StructureSignature([]*Display{a2}))
	})
}
