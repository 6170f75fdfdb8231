package sourcedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/meghashyamc/caseindex/db/sourcedb/migrations"
	"github.com/meghashyamc/caseindex/logger"
	_ "modernc.org/sqlite" // SQLite driver
)

const timeLayout = time.RFC3339Nano

var (
	caseColumns         = []string{"id", "user_id", "title", "description", "case_type", "status", "created_at"}
	evidenceColumns     = []string{"e.id", "e.case_id", "e.title", "e.content", "e.evidence_type", "e.file_path", "e.created_at"}
	conversationColumns = []string{"id", "user_id", "case_id", "title", "message_count", "created_at"}
	messageColumns      = []string{"id", "conversation_id", "role", "content", "created_at"}
	noteColumns         = []string{"id", "user_id", "case_id", "title", "content", "is_pinned", "created_at"}
)

type scanner interface {
	Scan(dest ...any) error
}

// SQLiteDB is the source repository backed by SQLite.
type SQLiteDB struct {
	db     *sql.DB
	path   string
	logger logger.Logger
}

var _ Reader = (*SQLiteDB)(nil)

func New(logger logger.Logger, dbPath string) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create source database directory", "err", err.Error(), "path", dbPath)
		return nil, fmt.Errorf("failed to create source database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		logger.Error("failed to open source database", "err", err.Error(), "path", dbPath)
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}

	s := &SQLiteDB{db: db, path: dbPath, logger: logger}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		logger.Error("failed to migrate source database", "err", err.Error(), "path", dbPath)
		return nil, fmt.Errorf("failed to migrate source database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDB) migrate(fsys fs.FS) error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", version, formatTime(time.Now())); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *SQLiteDB) ListUserIDs(ctx context.Context) ([]int64, error) {
	query, args, err := sq.Select("id").From("users").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("failed to list users", "err", err.Error())
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteDB) ListCasesByUser(ctx context.Context, userID int64) ([]CaseRow, error) {
	builder := sq.Select(caseColumns...).From("cases").Where(sq.Eq{"user_id": userID}).OrderBy("id")
	return queryAll(ctx, s, builder, scanCase)
}

func (s *SQLiteDB) ListEvidenceByUser(ctx context.Context, userID int64) ([]EvidenceRow, error) {
	builder := sq.Select(evidenceColumns...).
		From("evidence e").
		Join("cases c ON c.id = e.case_id").
		Where(sq.Eq{"c.user_id": userID}).
		OrderBy("e.id")
	return queryAll(ctx, s, builder, scanEvidence)
}

func (s *SQLiteDB) ListConversationsByUser(ctx context.Context, userID int64) ([]ConversationRow, error) {
	builder := sq.Select(conversationColumns...).From("chat_conversations").Where(sq.Eq{"user_id": userID}).OrderBy("id")
	return queryAll(ctx, s, builder, scanConversation)
}

func (s *SQLiteDB) ListNotesByUser(ctx context.Context, userID int64) ([]NoteRow, error) {
	builder := sq.Select(noteColumns...).From("notes").Where(sq.Eq{"user_id": userID}).OrderBy("id")
	return queryAll(ctx, s, builder, scanNote)
}

func (s *SQLiteDB) ListMessages(ctx context.Context, conversationID int64) ([]MessageRow, error) {
	builder := sq.Select(messageColumns...).From("chat_messages").Where(sq.Eq{"conversation_id": conversationID}).OrderBy("created_at", "id")
	return queryAll(ctx, s, builder, scanMessage)
}

func (s *SQLiteDB) GetCase(ctx context.Context, id int64) (*CaseRow, error) {
	builder := sq.Select(caseColumns...).From("cases").Where(sq.Eq{"id": id})
	return queryOne(ctx, s, builder, scanCase)
}

func (s *SQLiteDB) GetEvidence(ctx context.Context, id int64) (*EvidenceRow, error) {
	builder := sq.Select(evidenceColumns...).From("evidence e").Where(sq.Eq{"e.id": id})
	return queryOne(ctx, s, builder, scanEvidence)
}

func (s *SQLiteDB) GetConversation(ctx context.Context, id int64) (*ConversationRow, error) {
	builder := sq.Select(conversationColumns...).From("chat_conversations").Where(sq.Eq{"id": id})
	return queryOne(ctx, s, builder, scanConversation)
}

func (s *SQLiteDB) GetNote(ctx context.Context, id int64) (*NoteRow, error) {
	builder := sq.Select(noteColumns...).From("notes").Where(sq.Eq{"id": id})
	return queryOne(ctx, s, builder, scanNote)
}

func queryAll[T any](ctx context.Context, s *SQLiteDB, builder sq.SelectBuilder, scan func(scanner) (T, error)) ([]T, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("source query failed", "query", query, "err", err.Error())
		return nil, fmt.Errorf("source query failed: %w", err)
	}
	defer rows.Close()

	var results []T
	for rows.Next() {
		row, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func queryOne[T any](ctx context.Context, s *SQLiteDB, builder sq.SelectBuilder, scan func(scanner) (T, error)) (*T, error) {
	query, args, err := builder.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	row, err := scan(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.Error("source query failed", "query", query, "err", err.Error())
		return nil, err
	}
	return &row, nil
}

func scanCase(row scanner) (CaseRow, error) {
	var c CaseRow
	var createdAt string
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &c.CaseType, &c.Status, &createdAt); err != nil {
		return c, wrapScan("case", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func scanEvidence(row scanner) (EvidenceRow, error) {
	var e EvidenceRow
	var createdAt string
	if err := row.Scan(&e.ID, &e.CaseID, &e.Title, &e.Content, &e.EvidenceType, &e.FilePath, &createdAt); err != nil {
		return e, wrapScan("evidence", err)
	}
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

func scanConversation(row scanner) (ConversationRow, error) {
	var c ConversationRow
	var caseID sql.NullInt64
	var createdAt string
	if err := row.Scan(&c.ID, &c.UserID, &caseID, &c.Title, &c.MessageCount, &createdAt); err != nil {
		return c, wrapScan("conversation", err)
	}
	c.CaseID = nullableID(caseID)
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func scanMessage(row scanner) (MessageRow, error) {
	var m MessageRow
	var createdAt string
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); err != nil {
		return m, wrapScan("message", err)
	}
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

func scanNote(row scanner) (NoteRow, error) {
	var n NoteRow
	var caseID sql.NullInt64
	var createdAt string
	if err := row.Scan(&n.ID, &n.UserID, &caseID, &n.Title, &n.Content, &n.IsPinned, &createdAt); err != nil {
		return n, wrapScan("note", err)
	}
	n.CaseID = nullableID(caseID)
	n.CreatedAt = parseTime(createdAt)
	return n, nil
}

func wrapScan(kind string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("scanning %s: %w", kind, err)
}

func nullableID(id sql.NullInt64) *int64 {
	if !id.Valid {
		return nil
	}
	value := id.Int64
	return &value
}

func nullInt64(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
