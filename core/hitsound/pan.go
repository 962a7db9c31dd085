package hitsound

import "github.com/bad-faith/beatplay/internal/utils"

// PanGains derives per-channel gain factors from a playfield position x in
// [0,1] (0 = hard left) and the spatial blend s in [0,1] (0 = centered,
// 1 = fully positional). Outputs are clamped to [0,1]; multiply them into the
// voice's base gain for the first two channels.
func PanGains(spatial, x float64) (left, right float64) {
	left = utils.Clamp01((1 - spatial) + spatial*(1-x))
	right = utils.Clamp01((1 - spatial) + spatial*x)
	return left, right
}
