package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the persistence contract the orchestrators run against.
// Every method executes against the ambient transaction when called
// through InTx, and against the pool otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(Store) error) error

	CreateReport(ctx context.Context, report Report) error
	GetReport(ctx context.Context, reportID string) (Report, error)
	ListReports(ctx context.Context, status string, limit int) ([]Report, error)
	MarkReportResolved(ctx context.Context, reportID string) (bool, error)

	CreateComment(ctx context.Context, comment Comment) error
	ListComments(ctx context.Context, reportID string) ([]Comment, error)
	CommentCount(ctx context.Context, reportID string) (int, error)

	LockVotable(ctx context.Context, kind Kind, entityID string) (Votable, error)
	GetVoteRecord(ctx context.Context, kind Kind, entityID, voterID string) (int, bool, error)
	UpsertVoteRecord(ctx context.Context, kind Kind, entityID, voterID string, value int) error
	DeleteVoteRecord(ctx context.Context, kind Kind, entityID, voterID string) error
	RecountVotes(ctx context.Context, kind Kind, entityID string) (int, int, error)

	LockAccount(ctx context.Context, userID string) (CivicAccount, error)
	UpdateAccount(ctx context.Context, userID string, points, level int) error
	GetAccount(ctx context.Context, userID string) (CivicAccount, error)

	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, targetType, targetID string, limit int) ([]AuditEntry, error)

	Ping(ctx context.Context) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	db *sql.DB
	q  querier
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// InTx runs fn against a transaction-backed store. The transaction is
// rolled back in full if fn fails; nested calls reuse the ambient
// transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&PostgresStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsConflict reports whether err is a serialization failure or
// deadlock, i.e. a transient conflict the caller may retry in full.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func tableFor(kind Kind) (string, error) {
	switch kind {
	case KindReport:
		return "reports", nil
	case KindComment:
		return "comments", nil
	default:
		return "", fmt.Errorf("unknown votable kind %q", kind)
	}
}

func (s *PostgresStore) CreateReport(ctx context.Context, report Report) error {
	status := report.Status
	if status == "" {
		status = StatusOpen
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reports (id, title, description, status, reporter_id, ai_legit, ai_severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, report.ID, report.Title, report.Description, status, report.ReporterID, report.AILegit, report.AISeverity)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (Report, error) {
	var (
		item       Report
		reporter   sql.NullString
		legit      sql.NullFloat64
		severity   sql.NullFloat64
		resolvedAt sql.NullTime
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, title, description, status, reporter_id, ai_legit, ai_severity,
			upvotes, downvotes, resolved_at, created_at
		FROM reports
		WHERE id=$1
	`, reportID).Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.Status,
		&reporter,
		&legit,
		&severity,
		&item.Upvotes,
		&item.Downvotes,
		&resolvedAt,
		&item.CreatedAt,
	)
	if err != nil {
		return Report{}, err
	}
	if reporter.Valid {
		item.ReporterID = &reporter.String
	}
	if legit.Valid {
		item.AILegit = &legit.Float64
	}
	if severity.Valid {
		item.AISeverity = &severity.Float64
	}
	if resolvedAt.Valid {
		item.ResolvedAt = &resolvedAt.Time
	}
	return item, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, status string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, title, description, status, reporter_id, ai_legit, ai_severity,
			upvotes, downvotes, resolved_at, created_at
		FROM reports
		WHERE ($1='' OR status=$1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	items := make([]Report, 0)
	for rows.Next() {
		var (
			item       Report
			reporter   sql.NullString
			legit      sql.NullFloat64
			severity   sql.NullFloat64
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.Description,
			&item.Status,
			&reporter,
			&legit,
			&severity,
			&item.Upvotes,
			&item.Downvotes,
			&resolvedAt,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if reporter.Valid {
			item.ReporterID = &reporter.String
		}
		if legit.Valid {
			item.AILegit = &legit.Float64
		}
		if severity.Valid {
			item.AISeverity = &severity.Float64
		}
		if resolvedAt.Valid {
			item.ResolvedAt = &resolvedAt.Time
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return items, nil
}

// MarkReportResolved performs the guarded status transition. The
// WHERE clause is the exactly-once mechanism: only one concurrent
// caller observes rows-affected > 0.
func (s *PostgresStore) MarkReportResolved(ctx context.Context, reportID string) (bool, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE reports
		SET status=$2, resolved_at=NOW()
		WHERE id=$1 AND status <> $2
	`, reportID, StatusResolved)
	if err != nil {
		return false, fmt.Errorf("mark report resolved: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark report resolved rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment Comment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO comments (id, report_id, author_id, body)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.ReportID, comment.AuthorID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, reportID string) ([]Comment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, report_id, author_id, body, upvotes, downvotes, created_at
		FROM comments
		WHERE report_id=$1
		ORDER BY created_at ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(
			&item.ID,
			&item.ReportID,
			&item.AuthorID,
			&item.Body,
			&item.Upvotes,
			&item.Downvotes,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CommentCount(ctx context.Context, reportID string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE report_id=$1`, reportID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return count, nil
}

// LockVotable reads an entity's aggregate row under FOR UPDATE,
// serializing concurrent vote transactions on the same entity.
func (s *PostgresStore) LockVotable(ctx context.Context, kind Kind, entityID string) (Votable, error) {
	item := Votable{Kind: kind, ID: entityID}
	var owner sql.NullString

	var err error
	switch kind {
	case KindReport:
		err = s.q.QueryRowContext(ctx, `
			SELECT reporter_id, upvotes, downvotes FROM reports WHERE id=$1 FOR UPDATE
		`, entityID).Scan(&owner, &item.Upvotes, &item.Downvotes)
	case KindComment:
		err = s.q.QueryRowContext(ctx, `
			SELECT author_id, upvotes, downvotes FROM comments WHERE id=$1 FOR UPDATE
		`, entityID).Scan(&owner, &item.Upvotes, &item.Downvotes)
	default:
		return Votable{}, fmt.Errorf("unknown votable kind %q", kind)
	}
	if err != nil {
		return Votable{}, err
	}
	if owner.Valid {
		item.OwnerID = &owner.String
	}
	return item, nil
}

func (s *PostgresStore) GetVoteRecord(ctx context.Context, kind Kind, entityID, voterID string) (int, bool, error) {
	var value int
	err := s.q.QueryRowContext(ctx, `
		SELECT value FROM votes
		WHERE entity_kind=$1 AND entity_id=$2 AND voter_id=$3
	`, kind, entityID, voterID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup vote record: %w", err)
	}
	return value, true, nil
}

func (s *PostgresStore) UpsertVoteRecord(ctx context.Context, kind Kind, entityID, voterID string, value int) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO votes (entity_kind, entity_id, voter_id, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_kind, entity_id, voter_id)
		DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()
	`, kind, entityID, voterID, value)
	if err != nil {
		return fmt.Errorf("upsert vote record: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteVoteRecord(ctx context.Context, kind Kind, entityID, voterID string) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM votes
		WHERE entity_kind=$1 AND entity_id=$2 AND voter_id=$3
	`, kind, entityID, voterID)
	if err != nil {
		return fmt.Errorf("delete vote record: %w", err)
	}
	return nil
}

// RecountVotes recomputes an entity's counters from the vote records
// and writes them back. The records are the source of truth; counters
// are a cache that must never drift from them.
func (s *PostgresStore) RecountVotes(ctx context.Context, kind Kind, entityID string) (int, int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, 0, err
	}

	var up, down int
	err = s.q.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE value = 1),
			COUNT(*) FILTER (WHERE value = -1)
		FROM votes
		WHERE entity_kind=$1 AND entity_id=$2
	`, kind, entityID).Scan(&up, &down)
	if err != nil {
		return 0, 0, fmt.Errorf("recount votes: %w", err)
	}

	if _, err := s.q.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET upvotes=$2, downvotes=$3 WHERE id=$1`, table),
		entityID, up, down,
	); err != nil {
		return 0, 0, fmt.Errorf("store vote counts: %w", err)
	}
	return up, down, nil
}

// LockAccount upserts the account row and locks it for the rest of the
// transaction.
func (s *PostgresStore) LockAccount(ctx context.Context, userID string) (CivicAccount, error) {
	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO civic_accounts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return CivicAccount{}, fmt.Errorf("ensure account: %w", err)
	}

	var account CivicAccount
	err := s.q.QueryRowContext(ctx, `
		SELECT user_id, points, level, updated_at
		FROM civic_accounts
		WHERE user_id=$1
		FOR UPDATE
	`, userID).Scan(&account.UserID, &account.Points, &account.Level, &account.UpdatedAt)
	if err != nil {
		return CivicAccount{}, fmt.Errorf("lock account: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, userID string, points, level int) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE civic_accounts
		SET points=$2, level=$3, updated_at=NOW()
		WHERE user_id=$1
	`, userID, points, level)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (CivicAccount, error) {
	var account CivicAccount
	err := s.q.QueryRowContext(ctx, `
		SELECT user_id, points, level, updated_at
		FROM civic_accounts
		WHERE user_id=$1
	`, userID).Scan(&account.UserID, &account.Points, &account.Level, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Accounts are created lazily; an absent row is a fresh account.
		return CivicAccount{UserID: userID, Points: 0, Level: 1}, nil
	}
	if err != nil {
		return CivicAccount{}, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO audit_log (actor_id, action, target_type, target_id, details)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`, entry.ActorID, entry.Action, entry.TargetType, entry.TargetID, string(encoded))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAudit(ctx context.Context, targetType, targetID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, actor_id, action, target_type, target_id, details, created_at
		FROM audit_log
		WHERE target_type=$1 AND target_id=$2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, targetType, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	items := make([]AuditEntry, 0)
	for rows.Next() {
		var (
			item       AuditEntry
			actor      sql.NullString
			detailsRaw []byte
		)
		if err := rows.Scan(
			&item.ID,
			&actor,
			&item.Action,
			&item.TargetType,
			&item.TargetID,
			&detailsRaw,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if actor.Valid {
			item.ActorID = &actor.String
		}
		_ = json.Unmarshal(detailsRaw, &item.Details)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
