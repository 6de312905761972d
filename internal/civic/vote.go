// Package civic holds the pure rules of the voting, scoring, and
// civic-points ledger. Nothing in this package performs I/O; the
// orchestrators in internal/app apply these transitions inside
// database transactions.
package civic

// Vote values as stored in a vote record. Zero means "no record".
const (
	VoteUp   = 1
	VoteNone = 0
	VoteDown = -1
)

// ValidVote reports whether v is an acceptable requested vote value.
func ValidVote(v int) bool {
	return v == VoteUp || v == VoteDown
}

// VoteDelta is the change a single vote transition applies to an
// entity's aggregate counters.
type VoteDelta struct {
	Up   int
	Down int
}

// NextVote computes the toggle/flip transition for one voter on one
// entity. current is the voter's existing vote (VoteNone when no
// record exists), requested must be VoteUp or VoteDown.
//
//   - no existing vote: the record is created with the requested value
//   - same value again: the record is removed (toggle off)
//   - opposite value: the record flips direction
//
// The returned next value is the voter's resulting vote; VoteNone
// means the record should be deleted.
func NextVote(current, requested int) (next int, delta VoteDelta) {
	switch {
	case current == VoteNone:
		next = requested
		delta = bucketDelta(requested, 1)
	case current == requested:
		next = VoteNone
		delta = bucketDelta(requested, -1)
	default:
		next = requested
		old := bucketDelta(current, -1)
		add := bucketDelta(requested, 1)
		delta = VoteDelta{Up: old.Up + add.Up, Down: old.Down + add.Down}
	}
	return next, delta
}

func bucketDelta(value, step int) VoteDelta {
	if value == VoteUp {
		return VoteDelta{Up: step}
	}
	return VoteDelta{Down: step}
}

// ApplyDelta adds a delta to aggregate counters, clamping at zero. A
// consistent ledger never produces negative counts; the clamp guards
// against replaying a delta against stale counters.
func ApplyDelta(up, down int, delta VoteDelta) (int, int) {
	up += delta.Up
	down += delta.Down
	if up < 0 {
		up = 0
	}
	if down < 0 {
		down = 0
	}
	return up, down
}
