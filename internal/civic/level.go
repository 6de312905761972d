package civic

// LevelThreshold is one row of the static level table. MaxPoints is -1
// for the open-ended top level.
type LevelThreshold struct {
	Level     int    `json:"level"`
	MinPoints int    `json:"minPoints"`
	MaxPoints int    `json:"maxPoints"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

// levelTable is loaded once and immutable at runtime. Ranges are
// non-overlapping and monotonically increasing.
var levelTable = []LevelThreshold{
	{Level: 1, MinPoints: 0, MaxPoints: 50, Name: "Newcomer", Color: "#9ca3af"},
	{Level: 2, MinPoints: 51, MaxPoints: 200, Name: "Neighbor", Color: "#22c55e"},
	{Level: 3, MinPoints: 201, MaxPoints: 500, Name: "Advocate", Color: "#3b82f6"},
	{Level: 4, MinPoints: 501, MaxPoints: 1000, Name: "Organizer", Color: "#8b5cf6"},
	{Level: 5, MinPoints: 1001, MaxPoints: 2000, Name: "Steward", Color: "#f97316"},
	{Level: 6, MinPoints: 2001, MaxPoints: 5000, Name: "Guardian", Color: "#ef4444"},
	{Level: 7, MinPoints: 5001, MaxPoints: -1, Name: "Champion", Color: "#eab308"},
}

// Levels returns a copy of the threshold table.
func Levels() []LevelThreshold {
	out := make([]LevelThreshold, len(levelTable))
	copy(out, levelTable)
	return out
}

// LevelFor maps cumulative points to a level. It is a monotonically
// non-decreasing step function; negative points map to level 1.
func LevelFor(points int) int {
	for i := len(levelTable) - 1; i >= 0; i-- {
		if points >= levelTable[i].MinPoints {
			return levelTable[i].Level
		}
	}
	return levelTable[0].Level
}

// Threshold returns the table row for a level, falling back to the
// first row for out-of-range input.
func Threshold(level int) LevelThreshold {
	for _, t := range levelTable {
		if t.Level == level {
			return t
		}
	}
	return levelTable[0]
}

// ProgressWithinLevel reports how far into its level a point total is,
// as a percentage clamped to [0, 100]. The top level has no next
// threshold and reports 100 by definition.
func ProgressWithinLevel(points, level int) int {
	t := Threshold(level)
	if t.MaxPoints < 0 {
		return 100
	}
	span := t.MaxPoints - t.MinPoints
	if span <= 0 {
		return 100
	}
	percent := (points - t.MinPoints) * 100 / span
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent
}

// LeveledUp reports whether a point credit crossed a level threshold.
// Levels never decrease: the core has no point-deduction path, and
// reward redemption (an external concern) deliberately deducts points
// without lowering the level.
func LeveledUp(oldLevel, newLevel int) bool {
	return newLevel > oldLevel
}
