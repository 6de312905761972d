package store

import "time"

// Report statuses. Resolution is the only transition this service
// guards; the rest are ordinary row updates.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusRejected   = "rejected"
)

// Audit action types emitted by the orchestrators.
const (
	ActionReportResolved = "REPORT_RESOLVED"
	ActionPointsAwarded  = "POINTS_AWARDED"
	ActionUserLevelUp    = "USER_LEVEL_UP"
)

// Kind identifies which table backs a votable entity.
type Kind string

const (
	KindReport  Kind = "report"
	KindComment Kind = "comment"
)

func (k Kind) Valid() bool {
	return k == KindReport || k == KindComment
}

type Report struct {
	ID          string
	Title       string
	Description string
	Status      string
	ReporterID  *string // nil means the report was filed anonymously
	AILegit     *float64
	AISeverity  *float64
	Upvotes     int
	Downvotes   int
	ResolvedAt  *time.Time
	CreatedAt   time.Time
}

type Comment struct {
	ID        string
	ReportID  string
	AuthorID  string
	Body      string
	Upvotes   int
	Downvotes int
	CreatedAt time.Time
}

// Votable is the projection of a report or comment the vote engine
// needs: its aggregate counters and its owner for the post-commit
// notification.
type Votable struct {
	Kind      Kind
	ID        string
	OwnerID   *string
	Upvotes   int
	Downvotes int
}

type CivicAccount struct {
	UserID    string
	Points    int
	Level     int
	UpdatedAt time.Time
}

// AuditEntry is append-only: rows are never updated or deleted. A nil
// ActorID marks a system-initiated action.
type AuditEntry struct {
	ID         int64          `json:"id"`
	ActorID    *string        `json:"actorId"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType"`
	TargetID   string         `json:"targetId"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"createdAt"`
}
