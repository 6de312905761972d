package civic

// Score is the community score for an entity: net approval normalized
// by total votes, in [-1, 1]. The max(1, total) denominator makes the
// zero-vote case 0 without branching.
func Score(upvotes, downvotes int) float64 {
	total := upvotes + downvotes
	if total < 1 {
		total = 1
	}
	return float64(upvotes-downvotes) / float64(total)
}
