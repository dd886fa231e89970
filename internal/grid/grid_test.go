package grid_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wordforge/challenge-service/internal/domain"
	"github.com/wordforge/challenge-service/internal/grid"
)

const (
	vowels = "АЕИОУЮЯ"
	rares  = "ЙЦФЧШЩЬЫЖЭ"
)

func newGenerator(seed int64) *grid.Generator {
	return grid.NewGenerator(rand.New(rand.NewSource(seed)))
}

func TestGenerateSizesAndComposition(t *testing.T) {
	wantVowels := map[int]int{6: 2, 8: 3, 10: 4}

	for seed := int64(0); seed < 50; seed++ {
		g := newGenerator(seed)
		for size, vowelCount := range wantVowels {
			letters, err := g.Generate(size)
			require.NoError(t, err)
			require.Len(t, letters, size)

			gotVowels := 0
			gotRares := 0
			seen := map[string]int{}
			for _, l := range letters {
				if strings.Contains(vowels, l) {
					gotVowels++
				}
				if strings.Contains(rares, l) {
					gotRares++
				}
				seen[l]++
			}
			require.Equal(t, vowelCount, gotVowels, "size %d seed %d", size, seed)
			require.LessOrEqual(t, gotRares, 1, "size %d seed %d", size, seed)

			// Letters are drawn without repetition
			for l, n := range seen {
				require.Equal(t, 1, n, "letter %s repeated", l)
			}
		}
	}
}

func TestGenerateInvalidSize(t *testing.T) {
	g := newGenerator(1)
	for _, size := range []int{0, 5, 7, 12, -1} {
		_, err := g.Generate(size)
		require.ErrorIs(t, err, domain.ErrInvalidGridSize)
	}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	a, err := newGenerator(42).Generate(8)
	require.NoError(t, err)
	b, err := newGenerator(42).Generate(8)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestGenerateAll(t *testing.T) {
	letters, err := newGenerator(7).GenerateAll()
	require.NoError(t, err)
	require.Len(t, letters, len(domain.GridSizes))
	require.Len(t, letters["6"], 6)
	require.Len(t, letters["8"], 8)
	require.Len(t, letters["10"], 10)
}

func TestGenerateRareLetterAppears(t *testing.T) {
	// Over enough draws the rare pool must show up at least once.
	found := false
	for seed := int64(0); seed < 100 && !found; seed++ {
		letters, err := newGenerator(seed).Generate(10)
		require.NoError(t, err)
		for _, l := range letters {
			if strings.Contains(rares, l) {
				found = true
				break
			}
		}
	}
	require.True(t, found, "no rare consonant in 100 seeded grids")
}
