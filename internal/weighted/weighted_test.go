package weighted

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChooseEmpty(t *testing.T) {
	assert.Equal(t, -1, Choose(rand.Intn, 0, func(int) int { return 1 }))
	assert.Equal(t, -1, Choose(rand.Intn, -3, func(int) int { return 1 }))
}

func TestChooseAllZeroWeightsIsUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	weights := []int{0, 0, 0, 0}

	const trials = 40000
	counts := make([]int, len(weights))
	for i := 0; i < trials; i++ {
		idx := Choose(rng.Intn, len(weights), func(i int) int { return weights[i] })
		if idx < 0 || idx >= len(weights) {
			t.Fatalf("index out of range: %d", idx)
		}
		counts[idx]++
	}

	expected := float64(trials) / float64(len(weights))
	for i, c := range counts {
		assert.InEpsilonf(t, expected, float64(c), 0.1,
			"variant %d picked %d times, expected about %.0f", i, c, expected)
	}
}

func TestChooseNegativeWeightsTreatedAsZero(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	weights := []int{-5, 10, -1}

	for i := 0; i < 1000; i++ {
		idx := Choose(rng.Intn, len(weights), func(i int) int { return weights[i] })
		assert.Equal(t, 1, idx)
	}
}

func TestChooseSingleItem(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	assert.Equal(t, 0, Choose(rng.Intn, 1, func(int) int { return 0 }))
	assert.Equal(t, 0, Choose(rng.Intn, 1, func(int) int { return 42 }))
}

func TestChooseConvergesToWeightRatios(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	weights := []int{60, 20, 20}

	const trials = 100000
	counts := make([]int, len(weights))
	for i := 0; i < trials; i++ {
		idx := Choose(rng.Intn, len(weights), func(i int) int { return weights[i] })
		counts[idx]++
	}

	total := 0
	for _, w := range weights {
		total += w
	}

	for i, w := range weights {
		want := float64(w) / float64(total)
		got := float64(counts[i]) / float64(trials)
		if math.Abs(got-want) > 0.01 {
			t.Errorf("variant %d: got frequency %.4f, want %.4f ± 0.01", i, got, want)
		}
	}
}

func TestChooseDeterministicWalk(t *testing.T) {
	// With a fixed draw the walk must land in the matching interval:
	// weights 3,0,2 partition [0,5) into [0,3) -> 0 and [3,5) -> 2.
	weights := []int{3, 0, 2}
	for draw, want := range map[int]int{0: 0, 2: 0, 3: 2, 4: 2} {
		got := Choose(func(int) int { return draw }, len(weights), func(i int) int { return weights[i] })
		assert.Equalf(t, want, got, "draw %d", draw)
	}
}
