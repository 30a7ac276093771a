package rating

import "math"

// KFactor scales every rating change.
const KFactor = 32.0

// ExpectedScore is the probability that a player rated self beats one rated
// other. ExpectedScore(a, b) + ExpectedScore(b, a) == 1.
func ExpectedScore(self, other float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (other-self)/400.0))
}

// CalculateElo returns the new ratings after winner beat loser. Both values
// derive from the pre-match ratings.
func CalculateElo(winner, loser float64) (newWinner, newLoser float64) {
	newWinner = winner + KFactor*(1-ExpectedScore(winner, loser))
	newLoser = loser + KFactor*(0-ExpectedScore(loser, winner))
	return newWinner, newLoser
}

// DisplayRating truncates a rating toward zero for presentation.
func DisplayRating(r float64) int {
	return int(r)
}
