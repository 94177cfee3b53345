package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AvengeMedia/dankdisplay/internal/log"
	"github.com/AvengeMedia/dankdisplay/internal/store"
)

// Preference keys are "<persistentID>/<command>/<attribute>". The persistent
// id itself is "<normalized name>-<vendor>-<model>-<token>", so everything
// stored for one vendor+model pairing shares a scannable prefix.

// Migration scoring weights. Empirically tuned, not invariants; each token
// bonus must dominate any plausible collision count, and the touched bonus
// must dominate everything else.
const (
	scoreTokenBonus   = 1000
	scoreValueBonus   = 500
	scoreTouchedBonus = 100000
)

func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "display"
	}
	return b.String()
}

// identityMarker is the vendor+model prefix shared by every unit of the
// same display product.
func identityMarker(d Descriptor) string {
	return fmt.Sprintf("%s-%d-%d-", normalizeName(d.Name), d.Vendor, d.Model)
}

// stableToken picks the best available hardware token, in confidence order:
// firmware UUID, platform unit number, serial, and finally the transient
// identifier, which only survives within a session.
func stableToken(d Descriptor) string {
	if d.FirmwareUUID != "" {
		return d.FirmwareUUID
	}
	if d.UnitNumber != 0 && d.UnitNumber != UnitNumberUnset {
		return strconv.FormatUint(uint64(d.UnitNumber), 10)
	}
	if d.Serial != 0 {
		return strconv.FormatUint(uint64(d.Serial), 10)
	}
	return strconv.FormatUint(uint64(d.ID), 10)
}

// PersistentID derives the stable key for a physical display. Two displays
// with equal PersistentID are treated as the same unit across restarts.
func PersistentID(d Descriptor) string {
	return identityMarker(d) + stableToken(d)
}

func prefKey(persistentID string, cmd Command, attr string) string {
	return persistentID + "/" + string(cmd) + "/" + attr
}

// MigratePreferences runs once at display construction, before any
// preference read. When the freshly derived id has no stored entries it
// scans prior identity schemes for the same vendor+model, scores each
// candidate and copies the winner's entries over. Destination keys are
// never overwritten. Returns the candidate suffix it migrated from, or ""
// when nothing matched.
func MigratePreferences(st store.Store, d Descriptor, current []Descriptor) string {
	newID := PersistentID(d)
	if len(st.Keys(newID+"/")) > 0 {
		return ""
	}

	marker := identityMarker(d)

	suffixes := make(map[string]bool)
	for _, k := range st.Keys(marker) {
		slash := strings.IndexByte(k, '/')
		if slash < 0 {
			continue
		}
		suffix := strings.TrimPrefix(k[:slash], marker)
		if suffix != "" && suffix != stableToken(d) {
			suffixes[suffix] = true
		}
	}

	if len(suffixes) == 0 {
		return ""
	}

	bestSuffix := ""
	bestScore := 0
	for suffix := range suffixes {
		score := scoreCandidate(st, d, current, marker, suffix)
		if score > bestScore || (score == bestScore && suffix < bestSuffix) {
			bestScore = score
			bestSuffix = suffix
		}
	}

	if bestScore <= 0 {
		return ""
	}

	oldID := marker + bestSuffix
	copied := 0
	for _, k := range st.Keys(oldID + "/") {
		dest := newID + strings.TrimPrefix(k, oldID)
		if _, exists := st.Get(dest); exists {
			continue
		}
		if v, ok := st.Get(k); ok {
			st.Set(dest, v)
			copied++
		}
	}

	log.Infof("migrated %d preference entries: %s -> %s (score=%d)", copied, oldID, newID, bestScore)
	return bestSuffix
}

func scoreCandidate(st store.Store, d Descriptor, current []Descriptor, marker, suffix string) int {
	score := 0

	// Ambiguity penalty inversion: a suffix that could belong to several
	// currently connected units of the same product scores each of them.
	for _, c := range current {
		if c.ID == d.ID {
			continue
		}
		if identityMarker(c) == marker && stableToken(c) == suffix {
			score++
		}
	}

	// Three independent checks; any one is decisive on its own.
	if suffix == strconv.FormatUint(uint64(d.ID), 10) {
		score += scoreTokenBonus
	}
	if d.Serial != 0 && suffix == strconv.FormatUint(uint64(d.Serial), 10) {
		score += scoreTokenBonus
	}
	if d.UnitNumber != 0 && d.UnitNumber != UnitNumberUnset &&
		suffix == strconv.FormatUint(uint64(d.UnitNumber), 10) {
		score += scoreTokenBonus
	}

	candidate := marker + suffix
	if touched, ok := st.GetBool(prefKey(candidate, CmdBrightness, "touched")); ok && touched {
		score += scoreTouchedBonus
	}
	if _, ok := st.GetFloat(prefKey(candidate, CmdBrightness, "value")); ok {
		score += scoreValueBonus
	}

	return score
}
