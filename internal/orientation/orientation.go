package orientation

import (
	"math"
)

// HeadingFromField computes a compass heading in degrees from the horizontal
// field components, assuming the sensor lies flat with X pointing forward.
//
//	heading = atan2(y, x), wrapped to [0, 360)
//
// No tilt compensation and no declination correction are applied.
func HeadingFromField(x, y float64) float64 {
	if x == 0 && y == 0 {
		return 0
	}
	deg := math.Atan2(y, x) * 180.0 / math.Pi
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// Cardinal returns the nearest of the 8 compass points for a heading.
func Cardinal(heading float64) string {
	points := [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	h := math.Mod(heading, 360)
	if h < 0 {
		h += 360
	}
	return points[int(math.Round(h/45))%len(points)]
}
