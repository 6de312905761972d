package civic

import "math"

// Point formula constants. Caps keep a single high-engagement report
// from dominating point totals regardless of what the external AI
// scorer returns.
const (
	basePoints       = 30
	resolutionPoints = 30
	aiBonusScale     = 20
	severityScale    = 15
	engagementCap    = 25
)

// AIScore is the assessment the external scoring service attaches to a
// report. Both fields are in [0, 1].
type AIScore struct {
	Legit    float64 `json:"legit"`
	Severity float64 `json:"severity"`
}

// PointsBreakdown is the itemized award computed once when a report is
// resolved. It is embedded in the resolution audit entry and never
// recomputed afterward.
type PointsBreakdown struct {
	Base            int `json:"base"`
	AIBonus         int `json:"aiBonus"`
	SeverityBonus   int `json:"severityBonus"`
	Engagement      int `json:"engagement"`
	ResolutionBonus int `json:"resolutionBonus"`
	Total           int `json:"total"`
}

// AwardPoints computes the breakdown for a resolved report from its
// stored AI score and its engagement counters at the instant of
// resolution. A missing AI score is treated as the neutral {0.5, 0.5}.
func AwardPoints(ai *AIScore, upvotes, commentCount int) PointsBreakdown {
	legit, severity := 0.5, 0.5
	if ai != nil {
		legit = ai.Legit
		severity = ai.Severity
	}

	breakdown := PointsBreakdown{
		Base:            basePoints,
		AIBonus:         int(math.Floor(legit * aiBonusScale)),
		SeverityBonus:   int(math.Floor(severity * severityScale)),
		Engagement:      min(upvotes*2+commentCount, engagementCap),
		ResolutionBonus: resolutionPoints,
	}
	breakdown.Total = breakdown.Base + breakdown.AIBonus + breakdown.SeverityBonus +
		breakdown.Engagement + breakdown.ResolutionBonus
	return breakdown
}
