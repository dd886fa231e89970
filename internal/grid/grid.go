// Package grid produces the random letter sets for daily challenges.
package grid

import (
	"math/rand"
	"strconv"

	"github.com/wordforge/challenge-service/internal/domain"
)

// Letter pools. Vowels are drawn without repetition; at most one rare
// consonant appears per grid.
const (
	vowels           = "АЕИОУЮЯ"
	commonConsonants = "БВГДЗКЛМНПРСТ"
	rareConsonants   = "ЙЦФЧШЩЬЫЖЭ"
)

// rareChance is the probability that a grid includes a rare consonant.
const rareChance = 0.3

// Generator samples letter grids from a seedable random source. It keeps no
// state beyond the source, so tests can pass a fixed seed.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator creates a generator backed by the given random source.
func NewGenerator(rnd *rand.Rand) *Generator {
	return &Generator{rnd: rnd}
}

// Generate returns exactly size letters for a grid of size 6, 8 or 10.
// Vowel count is fixed per size (2/3/4), at most one rare consonant is
// included, and the output order is shuffled.
func (g *Generator) Generate(size int) ([]string, error) {
	var targetVowels int
	switch size {
	case 6:
		targetVowels = 2
	case 8:
		targetVowels = 3
	case 10:
		targetVowels = 4
	default:
		return nil, domain.ErrInvalidGridSize
	}

	letters := make([]string, 0, size)

	vowelPool := split(vowels)
	g.shuffle(vowelPool)
	letters = append(letters, vowelPool[:targetVowels]...)

	allowRare := g.rnd.Float64() < rareChance
	consPool := split(commonConsonants + rareConsonants)
	g.shuffle(consPool)

	rareCount := 0
	for _, c := range consPool {
		if len(letters) >= size {
			break
		}
		if isRare(c) {
			if allowRare && rareCount < 1 {
				letters = append(letters, c)
				rareCount++
			}
			continue
		}
		letters = append(letters, c)
	}

	// Should not happen given the pool sizes, but never return a short grid.
	if len(letters) < size {
		backup := split(commonConsonants)
		g.shuffle(backup)
		letters = append(letters, backup[:size-len(letters)]...)
	}

	g.shuffle(letters)
	return letters, nil
}

// GenerateAll returns grids for every standard size, keyed the way the
// challenge store persists them.
func (g *Generator) GenerateAll() (domain.Letters, error) {
	letters := make(domain.Letters, len(domain.GridSizes))
	for _, size := range domain.GridSizes {
		grid, err := g.Generate(size)
		if err != nil {
			return nil, err
		}
		letters[strconv.Itoa(size)] = grid
	}
	return letters, nil
}

func (g *Generator) shuffle(s []string) {
	g.rnd.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}

func split(alphabet string) []string {
	runes := []rune(alphabet)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

func isRare(letter string) bool {
	for _, r := range rareConsonants {
		if letter == string(r) {
			return true
		}
	}
	return false
}
