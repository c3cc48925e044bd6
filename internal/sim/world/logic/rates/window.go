package rates

// Allow counts one more event in a fixed tick window and reports whether it
// is within max. A zero window or non-positive max disables the limit.
func Allow(nowTick uint64, startTick uint64, count int, window uint64, max int) (newStart uint64, newCount int, ok bool, cooldownTicks uint64) {
	newStart = startTick
	newCount = count
	if window == 0 || max <= 0 {
		return newStart, newCount, true, 0
	}
	if nowTick-newStart >= window {
		newStart = nowTick
		newCount = 0
	}
	newCount++
	if newCount <= max {
		return newStart, newCount, true, 0
	}
	return newStart, newCount, false, (newStart + window) - nowTick
}

// Window is the per-client state for Allow.
type Window struct {
	Start uint64
	Count int
}

func (w *Window) Allow(nowTick, window uint64, max int) (bool, uint64) {
	var ok bool
	var cooldown uint64
	w.Start, w.Count, ok, cooldown = Allow(nowTick, w.Start, w.Count, window, max)
	return ok, cooldown
}
