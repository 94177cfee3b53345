package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvengeMedia/dankdisplay/internal/store"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "DELLU2720Q", normalizeName("DELL U2720Q"))
	assert.Equal(t, "eDP1", normalizeName("eDP-1"))
	assert.Equal(t, "display", normalizeName("---"))
	assert.Equal(t, "display", normalizeName(""))
}

func TestPersistentID_Stability(t *testing.T) {
	d := Descriptor{
		ID:     7,
		Name:   "DELL U2720Q",
		Vendor: 4268,
		Model:  16594,
		Serial: 123456,
	}

	first := PersistentID(d)

	// The transient identifier must not leak into the stable key.
	d.ID = 99
	assert.Equal(t, first, PersistentID(d))
}

func TestStableToken_Precedence(t *testing.T) {
	d := Descriptor{
		ID:           3,
		FirmwareUUID: "uuid-abc",
		UnitNumber:   42,
		Serial:       777,
	}

	t.Run("firmware UUID wins", func(t *testing.T) {
		assert.Equal(t, "uuid-abc", stableToken(d))
	})

	t.Run("unit number next", func(t *testing.T) {
		d := d
		d.FirmwareUUID = ""
		assert.Equal(t, "42", stableToken(d))
	})

	t.Run("unit number sentinel skipped", func(t *testing.T) {
		d := d
		d.FirmwareUUID = ""
		d.UnitNumber = UnitNumberUnset
		assert.Equal(t, "777", stableToken(d))
	})

	t.Run("zero unit number skipped", func(t *testing.T) {
		d := d
		d.FirmwareUUID = ""
		d.UnitNumber = 0
		assert.Equal(t, "777", stableToken(d))
	})

	t.Run("transient id last resort", func(t *testing.T) {
		d := d
		d.FirmwareUUID = ""
		d.UnitNumber = 0
		d.Serial = 0
		assert.Equal(t, "3", stableToken(d))
	})
}

func TestPersistentID_DiffersAcrossUnits(t *testing.T) {
	a := Descriptor{Name: "LG HDR 4K", Vendor: 1, Model: 2, Serial: 100}
	b := Descriptor{Name: "LG HDR 4K", Vendor: 1, Model: 2, Serial: 200}
	assert.NotEqual(t, PersistentID(a), PersistentID(b))
}

func TestMigratePreferences_CopiesOldScheme(t *testing.T) {
	st := store.NewMemStore()

	// Entries keyed under the serial-era identity.
	d := Descriptor{ID: 5, Name: "BenQ PD2700U", Vendor: 10, Model: 20, Serial: 9999, FirmwareUUID: "fw-1"}
	oldID := identityMarker(d) + "9999"
	st.SetFloat(prefKey(oldID, CmdBrightness, "value"), 0.42)
	st.SetBool(prefKey(oldID, CmdBrightness, "touched"), true)

	suffix := MigratePreferences(st, d, []Descriptor{d})
	require.Equal(t, "9999", suffix)

	newID := PersistentID(d)
	v, ok := st.GetFloat(prefKey(newID, CmdBrightness, "value"))
	require.True(t, ok)
	assert.InDelta(t, 0.42, v, 1e-9)
	touched, ok := st.GetBool(prefKey(newID, CmdBrightness, "touched"))
	require.True(t, ok)
	assert.True(t, touched)

	// Source entries survive; migration copies, never moves.
	_, ok = st.GetFloat(prefKey(oldID, CmdBrightness, "value"))
	assert.True(t, ok)
}

func TestMigratePreferences_SkipsWhenDestinationExists(t *testing.T) {
	st := store.NewMemStore()
	d := Descriptor{ID: 5, Name: "BenQ", Vendor: 10, Model: 20, Serial: 9999, FirmwareUUID: "fw-1"}

	newID := PersistentID(d)
	st.SetFloat(prefKey(newID, CmdBrightness, "value"), 0.9)

	oldID := identityMarker(d) + "9999"
	st.SetFloat(prefKey(oldID, CmdBrightness, "value"), 0.1)

	suffix := MigratePreferences(st, d, []Descriptor{d})
	assert.Equal(t, "", suffix)

	v, _ := st.GetFloat(prefKey(newID, CmdBrightness, "value"))
	assert.InDelta(t, 0.9, v, 1e-9)
}

func TestMigratePreferences_TouchedBeatsValue(t *testing.T) {
	st := store.NewMemStore()
	d := Descriptor{ID: 5, Name: "BenQ", Vendor: 10, Model: 20, FirmwareUUID: "fw-1"}
	marker := identityMarker(d)

	// Candidate A only stores a value; candidate B was explicitly
	// configured by the user.
	st.SetFloat(prefKey(marker+"candA", CmdBrightness, "value"), 0.3)
	st.SetFloat(prefKey(marker+"candB", CmdBrightness, "value"), 0.6)
	st.SetBool(prefKey(marker+"candB", CmdBrightness, "touched"), true)

	suffix := MigratePreferences(st, d, []Descriptor{d})
	require.Equal(t, "candB", suffix)

	v, ok := st.GetFloat(prefKey(PersistentID(d), CmdBrightness, "value"))
	require.True(t, ok)
	assert.InDelta(t, 0.6, v, 1e-9)
}

func TestMigratePreferences_TokenMatchBeatsTouched(t *testing.T) {
	st := store.NewMemStore()
	d := Descriptor{ID: 5, Name: "BenQ", Vendor: 10, Model: 20, Serial: 9999, FirmwareUUID: "fw-1"}
	marker := identityMarker(d)

	st.SetFloat(prefKey(marker+"other", CmdBrightness, "value"), 0.3)
	st.SetBool(prefKey(marker+"other", CmdBrightness, "touched"), true)

	// Serial match plus touched outranks touched alone.
	st.SetFloat(prefKey(marker+"9999", CmdBrightness, "value"), 0.7)
	st.SetBool(prefKey(marker+"9999", CmdBrightness, "touched"), true)

	suffix := MigratePreferences(st, d, []Descriptor{d})
	assert.Equal(t, "9999", suffix)
}

func TestMigratePreferences_NothingToMigrate(t *testing.T) {
	st := store.NewMemStore()
	d := Descriptor{ID: 5, Name: "BenQ", Vendor: 10, Model: 20, FirmwareUUID: "fw-1"}
	assert.Equal(t, "", MigratePreferences(st, d, []Descriptor{d}))
}

func TestMigratePreferences_IgnoresOtherProducts(t *testing.T) {
	st := store.NewMemStore()
	d := Descriptor{ID: 5, Name: "BenQ", Vendor: 10, Model: 20, FirmwareUUID: "fw-1"}

	other := Descriptor{Name: "BenQ", Vendor: 10, Model: 99, Serial: 5}
	st.SetFloat(prefKey(PersistentID(other), CmdBrightness, "value"), 0.5)

	assert.Equal(t, "", MigratePreferences(st, d, []Descriptor{d}))
}
