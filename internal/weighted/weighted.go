// Package weighted implements weighted random selection. Strategy choice and
// experiment variant choice use the same routine so the two call sites cannot
// drift apart.
package weighted

// Choose picks an index in [0, n) where the probability of index i is
// proportional to weight(i). Negative weights count as zero. When every
// weight is zero the pick degrades to uniform random choice; it never fails
// for n > 0. Returns -1 when n <= 0.
//
// intn must behave like rand.Intn; it is injected so tests can be
// deterministic.
func Choose(intn func(int) int, n int, weight func(int) int) int {
	if n <= 0 {
		return -1
	}

	total := 0
	for i := 0; i < n; i++ {
		if w := weight(i); w > 0 {
			total += w
		}
	}

	if total == 0 {
		return intn(n)
	}

	r := intn(total)
	for i := 0; i < n; i++ {
		w := weight(i)
		if w <= 0 {
			continue
		}
		if r < w {
			return i
		}
		r -= w
	}

	// Unreachable when intn respects its contract.
	return n - 1
}
