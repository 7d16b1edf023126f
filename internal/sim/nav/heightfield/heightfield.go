// Package heightfield provides the deterministic dune surface the rover is
// grounded to. It is a value-noise field derived from a seeded integer hash,
// so two fields with the same seed are identical on every platform.
package heightfield

import "math"

// Field samples terrain height at world-plane coordinates.
type Field struct {
	seed      int64
	amplitude float64
	scale     float64 // world units per noise cell
}

func New(seed int64, amplitude, scale float64) *Field {
	if scale <= 0 {
		scale = 1
	}
	return &Field{seed: seed, amplitude: amplitude, scale: scale}
}

// HeightAt returns the ground height at (wx, wz). Two octaves of smoothed
// value noise: broad dunes plus finer ripples.
func (f *Field) HeightAt(wx, wz float64) float64 {
	h := f.noise(wx/f.scale, wz/f.scale) * f.amplitude
	h += f.noise(wx/f.scale*4+17.3, wz/f.scale*4-9.1) * f.amplitude * 0.2
	return h
}

// noise is bilinear interpolation over hashed lattice values in [0, 1),
// smoothed with the usual cubic fade.
func (f *Field) noise(x, z float64) float64 {
	x0 := int(math.Floor(x))
	z0 := int(math.Floor(z))
	tx := fade(x - float64(x0))
	tz := fade(z - float64(z0))

	v00 := f.lattice(x0, z0)
	v10 := f.lattice(x0+1, z0)
	v01 := f.lattice(x0, z0+1)
	v11 := f.lattice(x0+1, z0+1)

	a := v00 + (v10-v00)*tx
	b := v01 + (v11-v01)*tx
	return a + (b-a)*tz
}

func (f *Field) lattice(x, z int) float64 {
	return float64(hash2(f.seed, x, z)>>11) / float64(1<<53)
}

func fade(t float64) float64 {
	return t * t * (3 - 2*t)
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}
