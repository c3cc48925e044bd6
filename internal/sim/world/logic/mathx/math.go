package mathx

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Hash64 mixes a full 64-bit key (such as a tick) with the seed and a salt.
func Hash64(seed int64, key uint64, salt int) uint64 {
	v := uint64(seed) ^ mix64(key) ^ (uint64(uint32(int32(salt))) * 0xc2b2ae3d27d4eb4f)
	return mix64(v)
}

// Unit maps a hash onto [0,1).
func Unit(h uint64) float64 {
	return float64(h>>11) / float64(1<<53)
}

func Lerp(a, b, t float64) float64 { return a + (b-a)*t }

func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
