package costmap

// lcg is a small seeded linear-congruential generator. Generation must be
// bit-reproducible for a given seed across platforms, so terrain never goes
// through math/rand or any other source whose sequence could change.
type lcg struct {
	state uint64
}

func newLCG(seed int64) *lcg {
	// Avoid the all-zero state and decorrelate small seeds.
	return &lcg{state: uint64(seed)*6364136223846793005 + 1442695040888963407}
}

func (r *lcg) next() uint64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return r.state
}

// Float64 returns a value in [0, 1).
func (r *lcg) Float64() float64 {
	return float64(r.next()>>11) / float64(1<<53)
}

// Intn returns a value in [0, n). n must be > 0.
func (r *lcg) Intn(n int) int {
	return int(r.next() % uint64(n))
}
