package render

import "math"

// DefaultEpsilon is the per-channel difference below which two frames are
// considered identical.
const DefaultEpsilon = 0.001

// Perceptual writes src into dst with every channel squared and clamped to
// [0, 1]. It is a cheap gamma approximation for WS2812 LEDs.
func Perceptual(dst, src Buffer) {
	for i := range src {
		dst[i] = Color{
			R: clamp01(src[i].R * src[i].R),
			G: clamp01(src[i].G * src[i].G),
			B: clamp01(src[i].B * src[i].B),
		}
	}
}

// Changed reports whether any channel of any pixel differs by more than
// eps. Frames of different length always differ.
func Changed(prev, next Buffer, eps float64) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range next {
		if math.Abs(next[i].R-prev[i].R) > eps ||
			math.Abs(next[i].G-prev[i].G) > eps ||
			math.Abs(next[i].B-prev[i].B) > eps {
			return true
		}
	}
	return false
}

// Bytes quantizes a frame to 8-bit RGB triples.
func Bytes(buf Buffer, dst []byte) []byte {
	if cap(dst) < len(buf)*3 {
		dst = make([]byte, len(buf)*3)
	}
	dst = dst[:len(buf)*3]
	for i, c := range buf {
		dst[i*3+0] = to255(c.R)
		dst[i*3+1] = to255(c.G)
		dst[i*3+2] = to255(c.B)
	}
	return dst
}

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func to255(x float64) byte {
	return byte(math.Round(clamp01(x) * 255))
}
