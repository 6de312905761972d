package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"civicwatch/api/internal/civic"
	"civicwatch/api/internal/config"
	"civicwatch/api/internal/search"
	"civicwatch/api/internal/store"
	"civicwatch/api/internal/util"
)

// Notifier receives post-commit events. Both notify.Publisher and
// notify.LogSink satisfy it.
type Notifier interface {
	VoteCast(ctx context.Context, ownerID string, entityKind, entityID string, value int)
	ReportResolved(ctx context.Context, userID, reportID string, points, newLevel int)
	LeveledUp(ctx context.Context, userID string, newLevel int, levelName string)
}

type Service struct {
	cfg    config.Config
	store  store.Store
	events Notifier
	search *search.Service // nil disables indexing and search
	logger *zap.Logger
}

func New(cfg config.Config, dataStore store.Store, events Notifier, searchSvc *search.Service, logger *zap.Logger) *Service {
	return &Service{
		cfg:    cfg,
		store:  dataStore,
		events: events,
		search: searchSvc,
		logger: logger,
	}
}

// withConflictRetry runs op, retrying with exponential backoff when the
// store reports a serialization or deadlock conflict. Any other error
// fails immediately. Exhausted retries surface as TRANSACTION_CONFLICT.
func (s *Service) withConflictRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.cfg.ConflictRetries)), ctx)
	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if store.IsConflict(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err != nil && store.IsConflict(err) {
		return errTransactionConflict()
	}
	return err
}

type CreateReportInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	AIScore     *civic.AIScore `json:"aiScore,omitempty"`
}

type ReportView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	ReporterID  *string    `json:"reporterId"`
	Upvotes     int        `json:"upvotes"`
	Downvotes   int        `json:"downvotes"`
	Score       float64    `json:"score"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func reportView(r store.Report) ReportView {
	return ReportView{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		ReporterID:  r.ReporterID,
		Upvotes:     r.Upvotes,
		Downvotes:   r.Downvotes,
		Score:       civic.Score(r.Upvotes, r.Downvotes),
		ResolvedAt:  r.ResolvedAt,
		CreatedAt:   r.CreatedAt,
	}
}

// CreateReport files a new report. An empty reporterID files it
// anonymously; anonymous reports never earn civic points.
func (s *Service) CreateReport(ctx context.Context, reporterID string, input CreateReportInput) (ReportView, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ReportView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION", "title is required", nil)
	}
	report := store.Report{
		ID:          util.NewID("rpt"),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      store.StatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
	if reporterID != "" {
		report.ReporterID = &reporterID
	}
	if input.AIScore != nil {
		legit, severity := input.AIScore.Legit, input.AIScore.Severity
		report.AILegit = &legit
		report.AISeverity = &severity
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return ReportView{}, err
	}
	s.indexReport(report)
	return reportView(report), nil
}

func (s *Service) GetReport(ctx context.Context, reportID string) (ReportView, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReportView{}, errReportNotFound()
		}
		return ReportView{}, err
	}
	return reportView(report), nil
}

func (s *Service) ListReports(ctx context.Context, status string, limit int) ([]ReportView, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	reports, err := s.store.ListReports(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	views := make([]ReportView, 0, len(reports))
	for _, r := range reports {
		views = append(views, reportView(r))
	}
	return views, nil
}

type CommentView struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"reportId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

func commentView(c store.Comment) CommentView {
	return CommentView{
		ID:        c.ID,
		ReportID:  c.ReportID,
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		Upvotes:   c.Upvotes,
		Downvotes: c.Downvotes,
		Score:     civic.Score(c.Upvotes, c.Downvotes),
		CreatedAt: c.CreatedAt,
	}
}

func (s *Service) AddComment(ctx context.Context, reportID, authorID, body string) (CommentView, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return CommentView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION", "comment body is required", nil)
	}
	if _, err := s.store.GetReport(ctx, reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CommentView{}, errReportNotFound()
		}
		return CommentView{}, err
	}
	comment := store.Comment{
		ID:        util.NewID("cmt"),
		ReportID:  reportID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return CommentView{}, err
	}
	return commentView(comment), nil
}

func (s *Service) ListComments(ctx context.Context, reportID string) ([]CommentView, error) {
	comments, err := s.store.ListComments(ctx, reportID)
	if err != nil {
		return nil, err
	}
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, commentView(c))
	}
	return views, nil
}

type VoteResult struct {
	Upvotes   int     `json:"upvotes"`
	Downvotes int     `json:"downvotes"`
	Score     float64 `json:"score"`
	// UserVote is the voter's recorded vote after this call: +1, -1,
	// or 0 when the vote was toggled off.
	UserVote int `json:"userVote"`
}

// CastVote applies one voter's vote to a report or comment. Repeating
// the same vote removes it; voting the opposite direction flips it in
// a single call. Counters are recounted from the vote records inside
// the same transaction so they cannot drift.
func (s *Service) CastVote(ctx context.Context, kind store.Kind, entityID, voterID string, value int) (VoteResult, error) {
	if !civic.ValidVote(value) {
		return VoteResult{}, errInvalidVoteValue()
	}
	var (
		result VoteResult
		owner  *string
	)
	err := s.withConflictRetry(ctx, func() error {
		return s.store.InTx(ctx, func(tx store.Store) error {
			votable, err := tx.LockVotable(ctx, kind, entityID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return errEntityNotFound(string(kind))
				}
				return err
			}
			current, _, err := tx.GetVoteRecord(ctx, kind, entityID, voterID)
			if err != nil {
				return err
			}
			next, _ := civic.NextVote(current, value)
			if next == civic.VoteNone {
				if err := tx.DeleteVoteRecord(ctx, kind, entityID, voterID); err != nil {
					return err
				}
			} else {
				if err := tx.UpsertVoteRecord(ctx, kind, entityID, voterID, next); err != nil {
					return err
				}
			}
			up, down, err := tx.RecountVotes(ctx, kind, entityID)
			if err != nil {
				return err
			}
			owner = votable.OwnerID
			result = VoteResult{
				Upvotes:   up,
				Downvotes: down,
				Score:     civic.Score(up, down),
				UserVote:  next,
			}
			return nil
		})
	})
	if err != nil {
		return VoteResult{}, err
	}
	// Notify the content owner about active votes only, and never
	// about votes on their own content.
	if result.UserVote != civic.VoteNone && owner != nil && *owner != voterID {
		s.events.VoteCast(ctx, *owner, string(kind), entityID, result.UserVote)
	}
	return result, nil
}

type ResolutionResult struct {
	ReportID       string                 `json:"reportId"`
	PreviousStatus string                 `json:"previousStatus"`
	Status         string                 `json:"status"`
	PointsAwarded  int                    `json:"pointsAwarded"`
	Breakdown      *civic.PointsBreakdown `json:"breakdown,omitempty"`
	NewLevel       int                    `json:"newLevel,omitempty"`
	LeveledUp      bool                   `json:"leveledUp"`
}

// ResolveReport marks a report resolved and credits the reporter's
// civic account, exactly once: the status transition is guarded by a
// conditional update, so a concurrent or repeated resolution observes
// ALREADY_RESOLVED instead of awarding twice. Anonymous reports
// resolve without awarding points.
func (s *Service) ResolveReport(ctx context.Context, reportID, actorID string) (ResolutionResult, error) {
	var (
		result    ResolutionResult
		report    store.Report
		levelName string
	)
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	err := s.withConflictRetry(ctx, func() error {
		result = ResolutionResult{ReportID: reportID, Status: store.StatusResolved}
		return s.store.InTx(ctx, func(tx store.Store) error {
			var err error
			report, err = tx.GetReport(ctx, reportID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return errReportNotFound()
				}
				return err
			}
			changed, err := tx.MarkReportResolved(ctx, reportID)
			if err != nil {
				return err
			}
			if !changed {
				return errAlreadyResolved()
			}
			result.PreviousStatus = report.Status
			details := map[string]any{
				"previousStatus": report.Status,
				"newStatus":      store.StatusResolved,
				"pointsAwarded":  0,
			}
			if report.ReporterID != nil {
				reporterID := *report.ReporterID
				commentCount, err := tx.CommentCount(ctx, reportID)
				if err != nil {
					return err
				}
				var ai *civic.AIScore
				if report.AILegit != nil && report.AISeverity != nil {
					ai = &civic.AIScore{Legit: *report.AILegit, Severity: *report.AISeverity}
				}
				breakdown := civic.AwardPoints(ai, report.Upvotes, commentCount)
				account, err := tx.LockAccount(ctx, reporterID)
				if err != nil {
					return err
				}
				newPoints := account.Points + breakdown.Total
				newLevel := civic.LevelFor(newPoints)
				// Levels only ever increase; a stale stored level is
				// overwritten by the recomputed one.
				if newLevel < account.Level {
					newLevel = account.Level
				}
				if err := tx.UpdateAccount(ctx, reporterID, newPoints, newLevel); err != nil {
					return err
				}
				if err := tx.AppendAudit(ctx, store.AuditEntry{
					ActorID:    actor,
					Action:     store.ActionPointsAwarded,
					TargetType: "user",
					TargetID:   reporterID,
					Details: map[string]any{
						"reportId":  reportID,
						"breakdown": breakdown,
						"newTotal":  newPoints,
					},
				}); err != nil {
					return err
				}
				if civic.LeveledUp(account.Level, newLevel) {
					levelName = civic.Threshold(newLevel).Name
					if err := tx.AppendAudit(ctx, store.AuditEntry{
						ActorID:    actor,
						Action:     store.ActionUserLevelUp,
						TargetType: "user",
						TargetID:   reporterID,
						Details: map[string]any{
							"previousLevel": account.Level,
							"newLevel":      newLevel,
							"levelName":     levelName,
						},
					}); err != nil {
						return err
					}
					result.LeveledUp = true
				}
				result.PointsAwarded = breakdown.Total
				result.Breakdown = &breakdown
				result.NewLevel = newLevel
				details["pointsAwarded"] = breakdown.Total
			}
			return tx.AppendAudit(ctx, store.AuditEntry{
				ActorID:    actor,
				Action:     store.ActionReportResolved,
				TargetType: "report",
				TargetID:   reportID,
				Details:    details,
			})
		})
	})
	if err != nil {
		return ResolutionResult{}, err
	}
	if report.ReporterID != nil {
		s.events.ReportResolved(ctx, *report.ReporterID, reportID, result.PointsAwarded, result.NewLevel)
		if result.LeveledUp {
			s.events.LeveledUp(ctx, *report.ReporterID, result.NewLevel, levelName)
		}
	}
	report.Status = store.StatusResolved
	s.indexReport(report)
	return result, nil
}

type CivicProfile struct {
	UserID    string                `json:"userId"`
	Points    int                   `json:"points"`
	Level     int                   `json:"level"`
	LevelName string                `json:"levelName"`
	Color     string                `json:"color"`
	Progress  int                   `json:"progress"`
	Next      *civic.LevelThreshold `json:"nextLevel,omitempty"`
}

// Profile returns a user's civic standing. Unknown users get the
// zero-point level-one profile rather than an error.
func (s *Service) Profile(ctx context.Context, userID string) (CivicProfile, error) {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return CivicProfile{}, err
	}
	threshold := civic.Threshold(account.Level)
	profile := CivicProfile{
		UserID:    account.UserID,
		Points:    account.Points,
		Level:     account.Level,
		LevelName: threshold.Name,
		Color:     threshold.Color,
		Progress:  civic.ProgressWithinLevel(account.Points, account.Level),
	}
	if next := account.Level + 1; next <= len(civic.Levels()) {
		nextThreshold := civic.Threshold(next)
		profile.Next = &nextThreshold
	}
	return profile, nil
}

func (s *Service) Levels() []civic.LevelThreshold {
	return civic.Levels()
}

func (s *Service) AuditTrail(ctx context.Context, targetType, targetID string, limit int) ([]store.AuditEntry, error) {
	if targetType != "report" && targetType != "user" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION", "unknown audit target type", nil)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListAudit(ctx, targetType, targetID, limit)
}

func (s *Service) SearchReports(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) indexReport(report store.Report) {
	if s.search == nil {
		return
	}
	s.search.IndexReport(search.ReportRecord{
		ID:          report.ID,
		Title:       report.Title,
		Description: report.Description,
		Status:      report.Status,
	})
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
