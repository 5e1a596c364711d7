package screen

import "math"

// Eye grid size. Each character cell holds two vertical pixels.
const (
	EyeWidth       = 44
	EyeHeight      = 15
	EyePixelHeight = EyeHeight * 2
)

// Palette indexes returned by EyePixels: 0 is background, 1-9 the iris from
// the centre out, 10-13 the dark rim, 14-15 glass highlights.
const (
	EyeBackground = 0
	EyeHighlight  = 14
	EyePalette    = 16
)

type eyeRing struct {
	radius     float64
	breatheAmt float64
	colorIdx   int
}

var eyeRings = []eyeRing{
	{0.6, 0.30, 1},
	{1.3, 0.35, 2},
	{2.0, 0.30, 3},
	{2.8, 0.20, 4},
	{3.5, 0.18, 5},
	{4.2, 0.15, 6},
	{5.0, 0.12, 7},
	{5.8, 0.08, 8},
	{6.5, 0.03, 9},
	{7.2, 0.0, 10},
	{8.0, 0.0, 11},
	{10.0, 0.0, 12},
	{12.0, 0.0, 13},
}

type eyeSpot struct {
	ox, oy float64
	radius float64
	color  int
}

var eyeSpots = func() []eyeSpot {
	dSide, dSide2 := 9.0, 7.2
	dTop, dTop2 := 10.0, 8.2
	return []eyeSpot{
		{-dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{-dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -dTop, 0.8, 14},
		{0, -dTop2, 0.6, 15},
		{dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -2.0, 0.6, 14},
	}
}()

// EyePixels renders animation frame n of the eye as palette indexes,
// EyePixelHeight rows of EyeWidth. The iris pulses faster and wider while
// listening.
func EyePixels(frame int, listening bool) [][]int {
	centerX := float64(EyeWidth) / 2
	centerY := float64(EyePixelHeight) / 2

	var breathe float64
	if listening {
		breathe = math.Sin(float64(frame)*0.15)*0.08 + 0.05
	} else {
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	pixels := make([][]int, EyePixelHeight)
	for i := range pixels {
		pixels[i] = make([]int, EyeWidth)
	}

	for y := 0; y < EyePixelHeight; y++ {
		for x := 0; x < EyeWidth; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range eyeRings {
				radius := min(r.radius+breathe*r.breatheAmt*20, 10.0)
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	for y := 0; y < EyePixelHeight; y++ {
		for x := 0; x < EyeWidth; x++ {
			px := float64(x) - centerX
			py := float64(y) - centerY
			for _, s := range eyeSpots {
				dx := px - s.ox
				dy := py - s.oy
				rLen := math.Sqrt(s.ox*s.ox + s.oy*s.oy)
				if rLen < 0.001 {
					rLen = 1
				}
				tx, ty := -s.oy/rLen, s.ox/rLen
				dt := dx*tx + dy*ty
				dn := dx*(-ty) + dy*tx
				if (dt*dt)/9.0+dn*dn < s.radius*s.radius {
					pixels[y][x] = s.color
				}
			}
		}
	}
	return pixels
}
