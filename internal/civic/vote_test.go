package civic

import "testing"

func TestNextVoteFirstVote(t *testing.T) {
	next, delta := NextVote(VoteNone, VoteUp)
	if next != VoteUp {
		t.Fatalf("expected next vote %d, got %d", VoteUp, next)
	}
	if delta.Up != 1 || delta.Down != 0 {
		t.Fatalf("expected delta {1 0}, got {%d %d}", delta.Up, delta.Down)
	}

	next, delta = NextVote(VoteNone, VoteDown)
	if next != VoteDown {
		t.Fatalf("expected next vote %d, got %d", VoteDown, next)
	}
	if delta.Up != 0 || delta.Down != 1 {
		t.Fatalf("expected delta {0 1}, got {%d %d}", delta.Up, delta.Down)
	}
}

func TestNextVoteToggleOff(t *testing.T) {
	next, delta := NextVote(VoteUp, VoteUp)
	if next != VoteNone {
		t.Fatalf("re-casting the same vote should remove it, got %d", next)
	}
	if delta.Up != -1 || delta.Down != 0 {
		t.Fatalf("expected delta {-1 0}, got {%d %d}", delta.Up, delta.Down)
	}

	next, delta = NextVote(VoteDown, VoteDown)
	if next != VoteNone {
		t.Fatalf("re-casting the same vote should remove it, got %d", next)
	}
	if delta.Up != 0 || delta.Down != -1 {
		t.Fatalf("expected delta {0 -1}, got {%d %d}", delta.Up, delta.Down)
	}
}

func TestNextVoteFlip(t *testing.T) {
	next, delta := NextVote(VoteUp, VoteDown)
	if next != VoteDown {
		t.Fatalf("expected flipped vote %d, got %d", VoteDown, next)
	}
	if delta.Up != -1 || delta.Down != 1 {
		t.Fatalf("expected delta {-1 1}, got {%d %d}", delta.Up, delta.Down)
	}
}

// Replaying the same request against the state it produced must land on
// a stable two-state cycle, so a double-click can never double-count.
func TestNextVoteIdempotentUnderRetry(t *testing.T) {
	state := VoteNone
	up, down := 0, 0

	for i := 0; i < 4; i++ {
		next, delta := NextVote(state, VoteUp)
		state = next
		up, down = ApplyDelta(up, down, delta)
	}
	// Four identical requests: on, off, on, off.
	if state != VoteNone || up != 0 || down != 0 {
		t.Fatalf("expected clean toggle cycle, got state=%d up=%d down=%d", state, up, down)
	}
}

// End-to-end counter walk: +1 on 0/0, +1 again, then a -1 from a
// second voter.
func TestVoteScenario(t *testing.T) {
	up, down := 0, 0

	stateA, delta := NextVote(VoteNone, VoteUp)
	up, down = ApplyDelta(up, down, delta)
	if up != 1 || down != 0 || stateA != VoteUp || Score(up, down) != 1 {
		t.Fatalf("after first upvote: up=%d down=%d state=%d score=%v", up, down, stateA, Score(up, down))
	}

	stateA, delta = NextVote(stateA, VoteUp)
	up, down = ApplyDelta(up, down, delta)
	if up != 0 || down != 0 || stateA != VoteNone || Score(up, down) != 0 {
		t.Fatalf("after toggle off: up=%d down=%d state=%d score=%v", up, down, stateA, Score(up, down))
	}

	stateB, delta := NextVote(VoteNone, VoteDown)
	up, down = ApplyDelta(up, down, delta)
	if up != 0 || down != 1 || stateB != VoteDown || Score(up, down) != -1 {
		t.Fatalf("after B downvote: up=%d down=%d state=%d score=%v", up, down, stateB, Score(up, down))
	}
}

func TestApplyDeltaClampsAtZero(t *testing.T) {
	up, down := ApplyDelta(0, 0, VoteDelta{Up: -1, Down: -1})
	if up != 0 || down != 0 {
		t.Fatalf("expected counts clamped at zero, got up=%d down=%d", up, down)
	}
}

func TestValidVote(t *testing.T) {
	for _, v := range []int{VoteUp, VoteDown} {
		if !ValidVote(v) {
			t.Fatalf("expected %d to be valid", v)
		}
	}
	for _, v := range []int{0, 2, -2, 100} {
		if ValidVote(v) {
			t.Fatalf("expected %d to be rejected", v)
		}
	}
}
