package civic

import "testing"

func TestAwardPointsWorkedExample(t *testing.T) {
	// aiScore={legit:0.8, severity:0.6}, upvotes=10, comments=3.
	got := AwardPoints(&AIScore{Legit: 0.8, Severity: 0.6}, 10, 3)
	if got.AIBonus != 16 {
		t.Fatalf("aiBonus = %d, want 16", got.AIBonus)
	}
	if got.SeverityBonus != 9 {
		t.Fatalf("severityBonus = %d, want 9", got.SeverityBonus)
	}
	if got.Engagement != 23 {
		t.Fatalf("engagement = %d, want 23", got.Engagement)
	}
	if got.Total != 108 {
		t.Fatalf("total = %d, want 108", got.Total)
	}
}

func TestAwardPointsNeutralDefaultForMissingAIScore(t *testing.T) {
	got := AwardPoints(nil, 0, 0)
	if got.AIBonus != 10 {
		t.Fatalf("aiBonus with nil score = %d, want 10", got.AIBonus)
	}
	if got.SeverityBonus != 7 {
		t.Fatalf("severityBonus with nil score = %d, want 7", got.SeverityBonus)
	}
	if got.Total != 30+10+7+0+30 {
		t.Fatalf("total with nil score = %d, want %d", got.Total, 30+10+7+0+30)
	}
}

func TestAwardPointsEngagementCap(t *testing.T) {
	got := AwardPoints(nil, 1000, 1000)
	if got.Engagement != 25 {
		t.Fatalf("engagement = %d, want capped at 25", got.Engagement)
	}
}

func TestAwardPointsTotalBounds(t *testing.T) {
	low := AwardPoints(&AIScore{Legit: 0, Severity: 0}, 0, 0)
	if low.Total != 60 {
		t.Fatalf("minimum total = %d, want 60", low.Total)
	}
	high := AwardPoints(&AIScore{Legit: 1, Severity: 1}, 50, 50)
	if high.Total != 120 {
		t.Fatalf("maximum total = %d, want 120", high.Total)
	}
}

func TestAwardPointsMonotonic(t *testing.T) {
	base := AwardPoints(&AIScore{Legit: 0.3, Severity: 0.3}, 2, 2)

	moreLegit := AwardPoints(&AIScore{Legit: 0.9, Severity: 0.3}, 2, 2)
	if moreLegit.Total < base.Total {
		t.Fatalf("total decreased when legit increased: %d < %d", moreLegit.Total, base.Total)
	}
	moreSevere := AwardPoints(&AIScore{Legit: 0.3, Severity: 0.9}, 2, 2)
	if moreSevere.Total < base.Total {
		t.Fatalf("total decreased when severity increased: %d < %d", moreSevere.Total, base.Total)
	}
	moreVotes := AwardPoints(&AIScore{Legit: 0.3, Severity: 0.3}, 8, 2)
	if moreVotes.Total < base.Total {
		t.Fatalf("total decreased when engagement increased: %d < %d", moreVotes.Total, base.Total)
	}
}
