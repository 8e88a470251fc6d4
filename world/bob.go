package world

import "github.com/tanema/gween/ease"

const (
	// bobPeriod is the length of one up-and-down cycle in ticks.
	bobPeriod = 200
	// bobStagger delays each grid diagonal by this many ticks.
	bobStagger = 15
)

// Bob returns the height factor in [0, 1] of an instance at tick, after
// waiting delay ticks. The factor rises for half a period and falls for
// the other half, eased in and out at both ends.
func Bob(tick, delay int) float32 {
	if tick < delay {
		return 0
	}
	phase := (tick - delay) % bobPeriod
	half := float32(bobPeriod / 2)
	t := float32(phase) / half
	if phase >= bobPeriod/2 {
		t = float32(bobPeriod-1-phase) / half
	}
	return ease.InOutQuad(t, 0, 1, 1)
}
