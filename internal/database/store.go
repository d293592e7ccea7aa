package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/slackqa/internal/errs"
	"github.com/edgard/slackqa/internal/qa"
)

// recordColumns lists the questions table columns in declaration order.
const recordColumns = "id, question, answer, user_question, user_answer, related, keywords, aux_keywords, score"

// Store defines the question store operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// InsertRecords inserts records in a single transaction. Records whose id
	// already exists are skipped. It returns the number of rows inserted.
	InsertRecords(ctx context.Context, records []qa.Record) (int, error)

	// CreateRecord inserts one record and fails if the id exists.
	CreateRecord(ctx context.Context, record qa.Record) error

	// AllRecords returns every record ordered by id.
	AllRecords(ctx context.Context) ([]qa.Record, error)

	// ReplaceRelated overwrites the related ids of the given records in a
	// single transaction.
	ReplaceRelated(ctx context.Context, related map[string][]string) error

	// SearchSubstring returns records whose question, answer, keywords or
	// aux keywords contain query, ignoring case.
	SearchSubstring(ctx context.Context, query string) ([]qa.Record, error)

	// GetByIDs returns the records with the given ids, in the order given.
	// Unknown ids are ignored.
	GetByIDs(ctx context.Context, ids []string) ([]qa.Record, error)

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)

	// RunSQLMaintenance reclaims space and refreshes planner statistics.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore implements Store using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by db.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.NewDatabaseError("database ping failed", err)
	}
	return nil
}

func (s *sqlxStore) InsertRecords(ctx context.Context, records []qa.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for inserting records", "error", err)
		return 0, errs.NewDatabaseError("failed to begin transaction", err)
	}
	defer s.rollback(ctx, &tx)

	stmt, err := tx.PrepareNamedContext(ctx, `
        INSERT INTO questions (`+recordColumns+`)
        VALUES (:id, :question, :answer, :user_question, :user_answer, :related, :keywords, :aux_keywords, :score)
        ON CONFLICT (id) DO NOTHING;
    `)
	if err != nil {
		return 0, errs.NewDatabaseError("failed to prepare insert", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range records {
		if err := validateRecord(records[i]); err != nil {
			return 0, err
		}
		result, err := stmt.ExecContext(ctx, &records[i])
		if err != nil {
			s.logger.ErrorContext(ctx, "Error inserting record", "id", records[i].ID, "error", err)
			return 0, errs.NewDatabaseError(fmt.Sprintf("failed to insert record %s", records[i].ID), err)
		}
		if affected, err := result.RowsAffected(); err == nil {
			inserted += int(affected)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit record batch", "count", len(records), "error", err)
		return 0, errs.NewDatabaseError("failed to commit transaction", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Inserted records", "received", len(records), "inserted", inserted)
	return inserted, nil
}

func (s *sqlxStore) CreateRecord(ctx context.Context, record qa.Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `
        INSERT INTO questions (`+recordColumns+`)
        VALUES (:id, :question, :answer, :user_question, :user_answer, :related, :keywords, :aux_keywords, :score);
    `, &record)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating record", "id", record.ID, "error", err)
		return errs.NewDatabaseError(fmt.Sprintf("failed to create record %s", record.ID), err)
	}
	return nil
}

func (s *sqlxStore) AllRecords(ctx context.Context) ([]qa.Record, error) {
	var records []qa.Record
	err := s.db.SelectContext(ctx, &records, `SELECT `+recordColumns+` FROM questions ORDER BY id;`)
	if err != nil {
		return nil, s.queryError(ctx, "failed to load records", err)
	}
	return records, nil
}

func (s *sqlxStore) ReplaceRelated(ctx context.Context, related map[string][]string) error {
	if len(related) == 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.NewDatabaseError("failed to begin transaction", err)
	}
	defer s.rollback(ctx, &tx)

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`UPDATE questions SET related = ? WHERE id = ?;`))
	if err != nil {
		return errs.NewDatabaseError("failed to prepare related update", err)
	}
	defer stmt.Close()

	// deterministic statement order
	ids := make([]string, 0, len(related))
	for id := range related {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, qa.StringList(related[id]), id); err != nil {
			s.logger.ErrorContext(ctx, "Error updating related ids", "id", id, "error", err)
			return errs.NewDatabaseError(fmt.Sprintf("failed to update related ids of %s", id), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.NewDatabaseError("failed to commit transaction", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Replaced related ids", "records", len(ids))
	return nil
}

func (s *sqlxStore) SearchSubstring(ctx context.Context, query string) ([]qa.Record, error) {
	pattern := "%" + escapeLike(query) + "%"
	var records []qa.Record
	err := s.db.SelectContext(ctx, &records, s.db.Rebind(`
        SELECT `+recordColumns+` FROM questions
        WHERE LOWER(question) LIKE LOWER(?) ESCAPE '\'
           OR LOWER(answer) LIKE LOWER(?) ESCAPE '\'
           OR LOWER(keywords) LIKE LOWER(?) ESCAPE '\'
           OR LOWER(aux_keywords) LIKE LOWER(?) ESCAPE '\'
        ORDER BY id;
    `), pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, s.queryError(ctx, "failed to search records", err)
	}
	return records, nil
}

func (s *sqlxStore) GetByIDs(ctx context.Context, ids []string) ([]qa.Record, error) {
	if len(ids) == 0 {
		return []qa.Record{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+recordColumns+` FROM questions WHERE id IN (?);`, ids)
	if err != nil {
		return nil, errs.NewDatabaseError("failed to build id query", err)
	}

	var found []qa.Record
	if err := s.db.SelectContext(ctx, &found, s.db.Rebind(query), args...); err != nil {
		return nil, s.queryError(ctx, "failed to load records by id", err)
	}

	byID := make(map[string]qa.Record, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	records := make([]qa.Record, 0, len(found))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok && !seen[id] {
			records = append(records, r)
			seen[id] = true
		}
	}
	return records, nil
}

func (s *sqlxStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM questions;`); err != nil {
		return 0, s.queryError(ctx, "failed to count records", err)
	}
	return n, nil
}

// RunSQLMaintenance runs VACUUM on SQLite and VACUUM ANALYZE on PostgreSQL.
// Both must run outside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	statement := "VACUUM;"
	if s.db.DriverName() == DialectPostgres {
		statement = "VACUUM ANALYZE questions;"
	}

	s.logger.InfoContext(ctx, "Starting database maintenance", "statement", statement)
	_, err := s.db.ExecContext(ctx, statement)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Database maintenance timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance failed", "error", err)
		return errs.NewDatabaseError("failed to run maintenance", err)
	default:
		s.logger.InfoContext(ctx, "Database maintenance completed")
	}
	return nil
}

func (s *sqlxStore) rollback(ctx context.Context, tx **sqlx.Tx) {
	if *tx == nil {
		return
	}
	if err := (*tx).Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.WarnContext(ctx, "Error rolling back transaction", "error", err)
	}
}

func (s *sqlxStore) queryError(ctx context.Context, msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Query timed out or was cancelled", "error", err)
		return err
	}
	s.logger.ErrorContext(ctx, msg, "error", err)
	return errs.NewDatabaseError(msg, err)
}

func validateRecord(r qa.Record) error {
	if r.ID == "" {
		return errs.NewValidationError("record id is empty", nil)
	}
	for _, id := range r.Related {
		if id == r.ID {
			return errs.NewValidationError(fmt.Sprintf("record %s relates to itself", r.ID), nil)
		}
	}
	if len(r.Related) > qa.MaxRelated {
		return errs.NewValidationError(fmt.Sprintf("record %s has %d related ids", r.ID, len(r.Related)), nil)
	}
	return nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
