package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/task"
)

// Schema is the SQL DDL for the threads table. Execute it via [PostgresStore.Migrate]
const Schema = `
CREATE TABLE IF NOT EXISTS research_threads (
    id            TEXT PRIMARY KEY,
    messages      JSONB NOT NULL DEFAULT '[]',
    tasks         JSONB NOT NULL DEFAULT '{}',
    message_count INTEGER NOT NULL DEFAULT 0,
    task_count    INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_research_threads_updated ON research_threads(updated_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool and *pgx.Conn satisfy it
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a Store backed by PostgreSQL. Messages and tasks are stored as JSONB
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over db. The caller is responsible for calling Migrate before first use
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPostgres opens a connection pool for dsn, applies the schema and returns the store with a close function
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresStore, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("thread: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("thread: ping: %w", err)
	}
	store := NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("thread: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	const query = `
		SELECT id, messages, tasks, created_at, updated_at
		FROM research_threads
		WHERE id = $1`

	var snap Snapshot
	var messagesJSON, tasksJSON []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&snap.ThreadID, &messagesJSON, &tasksJSON, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("thread: get %q: %w", id, err)
	}
	if err := json.Unmarshal(messagesJSON, &snap.Messages); err != nil {
		return nil, fmt.Errorf("thread: unmarshal messages: %w", err)
	}
	if err := json.Unmarshal(tasksJSON, &snap.Tasks); err != nil {
		return nil, fmt.Errorf("thread: unmarshal tasks: %w", err)
	}
	return &snap, nil
}

// Put upserts the snapshot. created_at of an existing row is preserved
func (s *PostgresStore) Put(ctx context.Context, snap Snapshot) error {
	if err := ValidateID(snap.ThreadID); err != nil {
		return err
	}
	messages := snap.Messages
	if messages == nil {
		messages = []ai.Message{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("thread: marshal messages: %w", err)
	}
	tasks := snap.Tasks
	if tasks.Tasks == nil {
		tasks.Tasks = []task.Task{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("thread: marshal tasks: %w", err)
	}

	const query = `
		INSERT INTO research_threads (id, messages, tasks, message_count, task_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			messages = EXCLUDED.messages,
			tasks = EXCLUDED.tasks,
			message_count = EXCLUDED.message_count,
			task_count = EXCLUDED.task_count,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.Exec(ctx, query,
		snap.ThreadID, messagesJSON, tasksJSON, len(messages), len(tasks.Tasks), snap.CreatedAt, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("thread: put %q: %w", snap.ThreadID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM research_threads WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("thread: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Info, error) {
	const query = `
		SELECT id, message_count, task_count, created_at, updated_at
		FROM research_threads
		ORDER BY updated_at DESC, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("thread: list: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ThreadID, &info.MessageCount, &info.TaskCount, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("thread: list scan: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("thread: list: %w", err)
	}
	return infos, nil
}
