package civic

import "testing"

func TestScoreZeroVotes(t *testing.T) {
	if got := Score(0, 0); got != 0 {
		t.Fatalf("Score(0,0) = %v, want 0", got)
	}
}

func TestScoreBounds(t *testing.T) {
	cases := []struct{ up, down int }{
		{1, 0}, {0, 1}, {10, 3}, {3, 10}, {100, 100}, {0, 0}, {1, 1},
	}
	for _, c := range cases {
		got := Score(c.up, c.down)
		if got < -1 || got > 1 {
			t.Fatalf("Score(%d,%d) = %v, out of [-1,1]", c.up, c.down, got)
		}
	}
	if Score(5, 0) != 1 {
		t.Fatalf("all-upvote score should be 1, got %v", Score(5, 0))
	}
	if Score(0, 5) != -1 {
		t.Fatalf("all-downvote score should be -1, got %v", Score(0, 5))
	}
}

func TestScoreNetApproval(t *testing.T) {
	if got := Score(3, 1); got != 0.5 {
		t.Fatalf("Score(3,1) = %v, want 0.5", got)
	}
	if got := Score(1, 3); got != -0.5 {
		t.Fatalf("Score(1,3) = %v, want -0.5", got)
	}
}
