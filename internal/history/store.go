package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/ziadkadry99/funcall/internal/db"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// Store provides access to recorded runs.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Record inserts a run and returns its ID. If run.ID is empty a UUID is
// generated; a zero StartedAt is set to now.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = StatusDone
		if run.Error != "" {
			run.Status = StatusFailed
		}
	}

	conversation, err := json.Marshal(run.Conversation)
	if err != nil {
		return "", errors.Wrap(err, "marshalling conversation")
	}
	if run.Conversation == nil {
		conversation = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, started_at, duration_ms, backend, model, input, answer, error,
			status, requests, function_calls, input_tokens, output_tokens, conversation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.Duration.Milliseconds(),
		run.Backend,
		run.Model,
		run.Input,
		run.Answer,
		run.Error,
		string(run.Status),
		run.Requests,
		run.FunctionCalls,
		run.InputTokens,
		run.OutputTokens,
		string(conversation),
	)
	if err != nil {
		return "", errors.Wrap(err, "inserting run")
	}
	return run.ID, nil
}

// Get retrieves a single run, conversation included.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+`, conversation FROM runs WHERE id = ?`, id)

	var conversation string
	run, err := scanRun(row, &conversation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(conversation), &run.Conversation); err != nil {
		return nil, errors.Wrap(err, "decoding conversation")
	}
	return run, nil
}

// List returns the most recent runs first, without conversations. A
// non-positive limit returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + columns + ` FROM runs ORDER BY started_at DESC, id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "querying runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, errors.Wrap(rows.Err(), "iterating runs")
}

// timeLayout has fixed width so that start times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const columns = `id, started_at, duration_ms, backend, model, input, answer, error,
	status, requests, function_calls, input_tokens, output_tokens`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner, extra ...any) (*Run, error) {
	var (
		run        Run
		startedAt  string
		durationMS int64
		status     string
	)
	dest := []any{
		&run.ID, &startedAt, &durationMS, &run.Backend, &run.Model, &run.Input,
		&run.Answer, &run.Error, &status, &run.Requests, &run.FunctionCalls,
		&run.InputTokens, &run.OutputTokens,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scanning run")
	}

	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s: parsing start time", run.ID)
	}
	run.StartedAt = t
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.Status = Status(status)
	return &run, nil
}
