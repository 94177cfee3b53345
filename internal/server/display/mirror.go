package display

// EffectiveID resolves a display that is part of a mirror set to the
// identifier that actually owns pixels. Side-effect free; invoked on every
// control operation and every poll tick. The platform guarantees the
// canonical identifier is never itself a mirror target, so a single lookup
// suffices and the resolution is idempotent.
func EffectiveID(enum Enumerator, d Descriptor) DisplayID {
	if !d.Mirrored {
		return d.ID
	}
	if target := enum.MirrorTarget(d.ID); target != 0 {
		return target
	}
	return d.ID
}
