package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/hitl-relay/domain"
)

// SQLiteStore implements Store using SQLite. It backs the same operation
// contracts as MemoryStore with a durable substrate; the pending slot
// compare-and-set is expressed as a guarded UPDATE checked via RowsAffected.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Concurrent installs on one session serialize on the write lock.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			owner_user_id TEXT NOT NULL DEFAULT '',
			pending_message_id TEXT,
			pending_text TEXT,
			pending_choices TEXT,
			pending_timeout_sec INTEGER,
			pending_severity TEXT,
			pending_metadata TEXT,
			pending_created_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_waiting ON sessions(status, owner_user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS replies (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			reply_id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			type TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			choice TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_replies_session ON replies(session_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// insertSession creates the row if it does not exist yet.
func (s *SQLiteStore) insertSession(ctx context.Context, tx *sql.Tx, sessionID string, initial domain.SessionStatus, ownerUserID string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, status, owner_user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(initial), ownerUserID, now.UnixMilli(), now.UnixMilli())
	return err
}

func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, sessionID string, initial domain.SessionStatus, ownerUserID string) (*domain.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.insertSession(ctx, tx, sessionID, initial, ownerUserID, time.Now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, sessionID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, status, owner_user_id,
		        pending_message_id, pending_text, pending_choices, pending_timeout_sec,
		        pending_severity, pending_metadata, pending_created_at,
		        created_at, updated_at
		 FROM sessions WHERE session_id = ?`, sessionID)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT reply_id, type, text, choice, created_at
		 FROM replies WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sess.Replies = []domain.Reply{}
	for rows.Next() {
		var r domain.Reply
		var createdAt int64
		if err := rows.Scan(&r.ReplyID, &r.Type, &r.Text, &r.Choice, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		sess.Replies = append(sess.Replies, r)
	}
	return sess, rows.Err()
}

func (s *SQLiteStore) InstallQuestion(ctx context.Context, sessionID, ownerUserID string, q *domain.PendingQuestion) (*domain.Session, error) {
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.insertSession(ctx, tx, sessionID, domain.StatusWaitingUser, ownerUserID, now); err != nil {
		return nil, err
	}

	choices, _ := json.Marshal(q.Choices)
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET status = ?, pending_message_id = ?, pending_text = ?, pending_choices = ?,
		     pending_timeout_sec = ?, pending_severity = ?, pending_metadata = ?,
		     pending_created_at = ?, updated_at = ?
		 WHERE session_id = ? AND pending_message_id IS NULL`,
		string(domain.StatusWaitingUser), q.MessageID, q.Text, string(choices),
		q.TimeoutSec, string(q.Severity), nullString(q.Metadata),
		q.CreatedAt.UnixMilli(), now.UnixMilli(), sessionID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrQuestionPending
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, sessionID)
}

func (s *SQLiteStore) AddReply(ctx context.Context, sessionID string, reply *domain.Reply) (*domain.Session, error) {
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.insertSession(ctx, tx, sessionID, domain.StatusIdle, "", now); err != nil {
		return nil, err
	}
	if err := insertReply(ctx, tx, sessionID, reply); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET status = ?, pending_message_id = NULL, pending_text = NULL, pending_choices = NULL,
		     pending_timeout_sec = NULL, pending_severity = NULL, pending_metadata = NULL,
		     pending_created_at = NULL, updated_at = ?
		 WHERE session_id = ?`,
		string(domain.StatusResolved), now.UnixMilli(), sessionID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, sessionID)
}

func (s *SQLiteStore) CancelQuestion(ctx context.Context, sessionID string, reply *domain.Reply) (*domain.Session, error) {
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET status = ?, pending_message_id = NULL, pending_text = NULL, pending_choices = NULL,
		     pending_timeout_sec = NULL, pending_severity = NULL, pending_metadata = NULL,
		     pending_created_at = NULL, updated_at = ?
		 WHERE session_id = ? AND pending_message_id IS NOT NULL`,
		string(domain.StatusCanceled), now.UnixMilli(), sessionID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNoPendingQuestion
	}
	if err := insertReply(ctx, tx, sessionID, reply); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, sessionID)
}

func (s *SQLiteStore) FindMostRecentWaiting(ctx context.Context, ownerUserID string) (*domain.Session, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id FROM sessions
		 WHERE status = ? AND (? = '' OR owner_user_id = ?)
		 ORDER BY updated_at DESC LIMIT 1`,
		string(domain.StatusWaitingUser), ownerUserID, ownerUserID).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, sessionID)
}

func (s *SQLiteStore) ExpireStale(ctx context.Context, now time.Time, defaultTTL time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET status = ?, pending_message_id = NULL, pending_text = NULL, pending_choices = NULL,
		     pending_timeout_sec = NULL, pending_severity = NULL, pending_metadata = NULL,
		     pending_created_at = NULL, updated_at = ?
		 WHERE status = ? AND pending_message_id IS NOT NULL
		   AND ((pending_timeout_sec > 0 AND pending_created_at + pending_timeout_sec * 1000 <= ?)
		     OR (pending_timeout_sec = 0 AND ? > 0 AND pending_created_at + ? <= ?))`,
		string(domain.StatusExpired), now.UnixMilli(),
		string(domain.StatusWaitingUser),
		now.UnixMilli(), defaultTTL.Milliseconds(), defaultTTL.Milliseconds(), now.UnixMilli())
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func insertReply(ctx context.Context, tx *sql.Tx, sessionID string, reply *domain.Reply) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO replies (reply_id, session_id, type, text, choice, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		reply.ReplyID, sessionID, string(reply.Type), reply.Text, reply.Choice,
		reply.CreatedAt.UnixMilli())
	return err
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var sess domain.Session
	var pendingID, pendingText, pendingChoices, pendingSeverity, pendingMetadata sql.NullString
	var pendingTimeout, pendingCreatedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&sess.SessionID, &sess.Status, &sess.OwnerUserID,
		&pendingID, &pendingText, &pendingChoices, &pendingTimeout,
		&pendingSeverity, &pendingMetadata, &pendingCreatedAt,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	sess.CreatedAt = time.UnixMilli(createdAt)
	sess.UpdatedAt = time.UnixMilli(updatedAt)

	if pendingID.Valid {
		q := &domain.PendingQuestion{
			MessageID:  pendingID.String,
			Text:       pendingText.String,
			TimeoutSec: int(pendingTimeout.Int64),
			Severity:   domain.Severity(pendingSeverity.String),
			CreatedAt:  time.UnixMilli(pendingCreatedAt.Int64),
		}
		if pendingChoices.Valid && pendingChoices.String != "" && pendingChoices.String != "null" {
			if err := json.Unmarshal([]byte(pendingChoices.String), &q.Choices); err != nil {
				return nil, fmt.Errorf("failed to decode choices: %w", err)
			}
		}
		if pendingMetadata.Valid && pendingMetadata.String != "" {
			q.Metadata = json.RawMessage(pendingMetadata.String)
		}
		sess.PendingQuestion = q
	}

	return &sess, nil
}

func nullString(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
