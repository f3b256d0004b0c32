package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
	"github.com/zhouzirui/luxbus/backend/internal/model/chat"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS buses (
		id VARCHAR PRIMARY KEY,
		route TEXT NOT NULL,
		current_location TEXT NOT NULL,
		status TEXT NOT NULL,
		eta INTEGER,
		schedule JSONB NOT NULL,
		capacity INTEGER DEFAULT 0,
		last_updated TIMESTAMPTZ DEFAULT NOW(),
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		seq BIGSERIAL,
		id VARCHAR PRIMARY KEY,
		content TEXT NOT NULL,
		is_user INTEGER NOT NULL,
		timestamp TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_timestamp ON chat_messages(timestamp);
`

// PostgresStore persists the bus directory and chat transcript in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresStore) Close() error {
	r.pool.Close()
	return nil
}

// Ping checks database connectivity.
func (r *PostgresStore) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// SeedIfEmpty inserts buses when the directory has no rows yet.
func (r *PostgresStore) SeedIfEmpty(ctx context.Context, buses []bus.Bus) (bool, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM buses`).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count buses: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	batch := &pgx.Batch{}
	for i, b := range buses {
		schedule, err := json.Marshal(b.Schedule)
		if err != nil {
			return false, fmt.Errorf("failed to encode schedule for bus %s: %w", b.ID, err)
		}
		lastUpdated := b.LastUpdated
		if lastUpdated.IsZero() {
			lastUpdated = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO buses (id, route, current_location, status, eta, schedule, capacity, last_updated, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`, b.ID, b.Route, b.CurrentLocation, string(b.Status), b.ETA, schedule, b.Capacity, lastUpdated, i)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return false, fmt.Errorf("failed to seed buses: %w", err)
	}
	return true, nil
}

const postgresBusColumns = `id, route, current_location, status, eta, schedule, COALESCE(capacity, 0), COALESCE(last_updated, NOW())`

// List returns every bus in directory order.
func (r *PostgresStore) List(ctx context.Context) ([]bus.Bus, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+postgresBusColumns+` FROM buses ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query buses: %w", err)
	}
	defer rows.Close()

	buses := make([]bus.Bus, 0)
	for rows.Next() {
		b, err := scanPostgresBus(rows)
		if err != nil {
			return nil, err
		}
		buses = append(buses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bus rows: %w", err)
	}
	return buses, nil
}

// FindByID returns the bus with the given id.
func (r *PostgresStore) FindByID(ctx context.Context, id string) (bus.Bus, bool, error) {
	b, err := scanPostgresBus(r.pool.QueryRow(ctx, `SELECT `+postgresBusColumns+` FROM buses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return bus.Bus{}, false, nil
	}
	if err != nil {
		return bus.Bus{}, false, err
	}
	return b, true, nil
}

// Update merges patch into the stored bus, locking the row for the
// duration of the transaction.
func (r *PostgresStore) Update(ctx context.Context, id string, patch bus.Patch) (bus.Bus, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return bus.Bus{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanPostgresBus(tx.QueryRow(ctx, `SELECT `+postgresBusColumns+` FROM buses WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return bus.Bus{}, false, nil
	}
	if err != nil {
		return bus.Bus{}, false, err
	}

	updated, err := patch.Merge(current, time.Now().UTC())
	if err != nil {
		return bus.Bus{}, true, err
	}
	schedule, err := json.Marshal(updated.Schedule)
	if err != nil {
		return bus.Bus{}, false, fmt.Errorf("failed to encode schedule for bus %s: %w", id, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE buses
		SET route = $1, current_location = $2, status = $3, eta = $4, schedule = $5, capacity = $6, last_updated = $7
		WHERE id = $8
	`, updated.Route, updated.CurrentLocation, string(updated.Status), updated.ETA, schedule, updated.Capacity, updated.LastUpdated, id)
	if err != nil {
		return bus.Bus{}, false, fmt.Errorf("failed to update bus %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return bus.Bus{}, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, true, nil
}

// Append inserts a chat message.
func (r *PostgresStore) Append(ctx context.Context, message chat.Message) (chat.Message, error) {
	message = chat.Prepare(message, time.Now())

	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, content, is_user, timestamp)
		VALUES ($1, $2, $3, $4)
	`, message.ID, message.Content, message.UserFlag(), message.Timestamp)
	if err != nil {
		return chat.Message{}, fmt.Errorf("failed to insert chat message: %w", err)
	}
	return message, nil
}

// Messages returns the transcript newest first.
func (r *PostgresStore) Messages(ctx context.Context) ([]chat.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, content, is_user, COALESCE(timestamp, NOW())
		FROM chat_messages
		ORDER BY timestamp DESC, seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var (
			m      chat.Message
			isUser int
		)
		if err := rows.Scan(&m.ID, &m.Content, &isUser, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		m.IsUser = isUser == 1
		m.Timestamp = m.Timestamp.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat message rows: %w", err)
	}
	return messages, nil
}

// ChatLog exposes the transcript as a chat.Store.
func (r *PostgresStore) ChatLog() chat.Store {
	return postgresChatLog{r}
}

type postgresChatLog struct{ r *PostgresStore }

func (l postgresChatLog) Append(ctx context.Context, message chat.Message) (chat.Message, error) {
	return l.r.Append(ctx, message)
}

func (l postgresChatLog) List(ctx context.Context) ([]chat.Message, error) {
	return l.r.Messages(ctx)
}

func scanPostgresBus(row pgx.Row) (bus.Bus, error) {
	var (
		b        bus.Bus
		status   string
		eta      *int32
		schedule []byte
	)
	err := row.Scan(&b.ID, &b.Route, &b.CurrentLocation, &status, &eta, &schedule, &b.Capacity, &b.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return bus.Bus{}, err
	}
	if err != nil {
		return bus.Bus{}, fmt.Errorf("failed to scan bus row: %w", err)
	}

	b.Status = bus.Status(status)
	if eta != nil {
		b.ETA = bus.IntPtr(int(*eta))
	}
	if err := json.Unmarshal(schedule, &b.Schedule); err != nil {
		return bus.Bus{}, fmt.Errorf("failed to decode schedule for bus %s: %w", b.ID, err)
	}
	b.LastUpdated = b.LastUpdated.UTC()
	return b, nil
}
