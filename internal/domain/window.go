package domain

import "time"

// WindowLabel names an offset before a market's resolution time at which a
// price snapshot is taken. The set of labels is closed; ordering is from the
// earliest window (furthest before resolution) to the latest.
type WindowLabel string

const (
	Window7D WindowLabel = "7d"
	Window3D WindowLabel = "3d"
	Window1D WindowLabel = "1d"
	Window6H WindowLabel = "6h"
	Window1H WindowLabel = "1h"
)

var windowOffsets = map[WindowLabel]time.Duration{
	Window7D: 7 * 24 * time.Hour,
	Window3D: 3 * 24 * time.Hour,
	Window1D: 24 * time.Hour,
	Window6H: 6 * time.Hour,
	Window1H: time.Hour,
}

// AllWindows lists every label from earliest to latest relative to
// resolution. Later windows override earlier ones when a persona's committed
// position is determined, so this ordering is load-bearing.
var AllWindows = []WindowLabel{Window7D, Window3D, Window1D, Window6H, Window1H}

// Valid reports whether w is a known label.
func (w WindowLabel) Valid() bool {
	_, ok := windowOffsets[w]
	return ok
}

// Offset returns the duration before resolution that w names. Zero for an
// unknown label.
func (w WindowLabel) Offset() time.Duration {
	return windowOffsets[w]
}

// WindowsInOrder returns the given labels sorted earliest-first, dropping any
// unknown labels. The input slice is not modified.
func WindowsInOrder(labels []WindowLabel) []WindowLabel {
	seen := make(map[WindowLabel]bool, len(labels))
	for _, l := range labels {
		seen[l] = true
	}
	out := make([]WindowLabel, 0, len(labels))
	for _, l := range AllWindows {
		if seen[l] {
			out = append(out, l)
		}
	}
	return out
}
