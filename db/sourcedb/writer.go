package sourcedb

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// The write side exists for seeding and tests; the application's own
// repositories own these tables in production.

func (s *SQLiteDB) CreateUser(ctx context.Context, username string) (int64, error) {
	return s.insert(ctx, sq.Insert("users").
		Columns("username", "created_at").
		Values(username, formatTime(time.Now())))
}

func (s *SQLiteDB) CreateCase(ctx context.Context, row CaseRow) (int64, error) {
	return s.insert(ctx, sq.Insert("cases").
		Columns("user_id", "title", "description", "case_type", "status", "created_at").
		Values(row.UserID, row.Title, row.Description, defaultString(row.CaseType, "other"), defaultString(row.Status, "active"), formatTime(createdAtOrNow(row.CreatedAt))))
}

func (s *SQLiteDB) CreateEvidence(ctx context.Context, row EvidenceRow) (int64, error) {
	return s.insert(ctx, sq.Insert("evidence").
		Columns("case_id", "title", "content", "evidence_type", "file_path", "created_at").
		Values(row.CaseID, row.Title, row.Content, defaultString(row.EvidenceType, "document"), row.FilePath, formatTime(createdAtOrNow(row.CreatedAt))))
}

func (s *SQLiteDB) CreateConversation(ctx context.Context, row ConversationRow) (int64, error) {
	return s.insert(ctx, sq.Insert("chat_conversations").
		Columns("user_id", "case_id", "title", "message_count", "created_at").
		Values(row.UserID, nullInt64(row.CaseID), row.Title, 0, formatTime(createdAtOrNow(row.CreatedAt))))
}

// AddMessage appends a message and keeps the conversation's message_count
// in step.
func (s *SQLiteDB) AddMessage(ctx context.Context, row MessageRow) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.Insert("chat_messages").
		Columns("conversation_id", "role", "content", "created_at").
		Values(row.ConversationID, defaultString(row.Role, "user"), row.Content, formatTime(createdAtOrNow(row.CreatedAt))).
		ToSql()
	if err != nil {
		return 0, err
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("failed to insert message", "conversation_id", row.ConversationID, "err", err.Error())
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}

	query, args, err = sq.Update("chat_conversations").
		Set("message_count", sq.Expr("message_count + 1")).
		Where(sq.Eq{"id": row.ConversationID}).
		ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to update message count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit message: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteDB) CreateNote(ctx context.Context, row NoteRow) (int64, error) {
	return s.insert(ctx, sq.Insert("notes").
		Columns("user_id", "case_id", "title", "content", "is_pinned", "created_at").
		Values(row.UserID, nullInt64(row.CaseID), row.Title, row.Content, row.IsPinned, formatTime(createdAtOrNow(row.CreatedAt))))
}

func (s *SQLiteDB) UpdateCase(ctx context.Context, row CaseRow) error {
	query, args, err := sq.Update("cases").
		Set("title", row.Title).
		Set("description", row.Description).
		Set("case_type", defaultString(row.CaseType, "other")).
		Set("status", defaultString(row.Status, "active")).
		Where(sq.Eq{"id": row.ID}).
		ToSql()
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("failed to update case", "case_id", row.ID, "err", err.Error())
		return fmt.Errorf("failed to update case: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCase removes a case; evidence cascades, notes and conversations are
// detached.
func (s *SQLiteDB) DeleteCase(ctx context.Context, id int64) error {
	query, args, err := sq.Delete("cases").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.Error("failed to delete case", "case_id", id, "err", err.Error())
		return fmt.Errorf("failed to delete case: %w", err)
	}
	return nil
}

func (s *SQLiteDB) insert(ctx context.Context, builder sq.InsertBuilder) (int64, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building insert: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("source insert failed", "query", query, "err", err.Error())
		return 0, fmt.Errorf("source insert failed: %w", err)
	}
	return result.LastInsertId()
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func createdAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
