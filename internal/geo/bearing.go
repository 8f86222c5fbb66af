package geo

import "math"

func toRad(d float64) float64 { return d * math.Pi / 180 }

// Bearing is the initial compass bearing from point 1 to point 2, in [0, 360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	y := math.Sin(toRad(lon2-lon1)) * math.Cos(toRad(lat2))
	x := math.Cos(toRad(lat1))*math.Sin(toRad(lat2)) -
		math.Sin(toRad(lat1))*math.Cos(toRad(lat2))*math.Cos(toRad(lon2-lon1))
	brng := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(brng+360, 360)
}

// Dist2 is a squared equirectangular distance in degrees. Only good for
// comparing nearby points.
func Dist2(lat1, lon1, lat2, lon2 float64) float64 {
	kx := math.Cos(toRad((lat1 + lat2) / 2))
	dx := (lon2 - lon1) * kx
	dy := lat2 - lat1
	return dx*dx + dy*dy
}
