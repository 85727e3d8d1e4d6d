package game

import (
	"slices"
)

func sortByOrdinal(guesses []Guess) {
	slices.SortStableFunc(guesses, func(a, b Guess) int {
		switch {
		case a.Ordinal < b.Ordinal:
			return -1
		case a.Ordinal > b.Ordinal:
			return 1
		default:
			return 0
		}
	})
}

// secretFromRandom 将预言机给出的随机值映射到 [minRange, maxRange]
func secretFromRandom(value uint64, minRange, maxRange uint8) uint8 {
	span := uint64(maxRange) - uint64(minRange) + 1
	return uint8(uint64(minRange) + value%span)
}
