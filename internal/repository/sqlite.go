package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
	"github.com/zhouzirui/luxbus/backend/internal/model/chat"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS buses (
		id TEXT PRIMARY KEY,
		route TEXT NOT NULL,
		current_location TEXT NOT NULL,
		status TEXT NOT NULL,
		eta INTEGER,
		schedule TEXT NOT NULL,
		capacity INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL,
		is_user INTEGER NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_timestamp ON chat_messages(timestamp);
`

// SQLiteStore persists the bus directory and chat transcript in SQLite.
// It implements bus.Store; ChatLog exposes the transcript as a chat.Store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dbPath, creates the schema and returns the store.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	inMemory := dbPath == ":memory:"
	dsn := dbPath
	if !inMemory {
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)
	if !inMemory {
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// Init creates the tables and indexes when missing.
func (s *SQLiteStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SeedIfEmpty inserts buses when the directory has no rows yet.
func (s *SQLiteStore) SeedIfEmpty(ctx context.Context, buses []bus.Bus) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM buses`).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count buses: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO buses (id, route, current_location, status, eta, schedule, capacity, last_updated, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, b := range buses {
		schedule, err := json.Marshal(b.Schedule)
		if err != nil {
			return false, fmt.Errorf("failed to encode schedule for bus %s: %w", b.ID, err)
		}
		lastUpdated := b.LastUpdated
		if lastUpdated.IsZero() {
			lastUpdated = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			b.ID, b.Route, b.CurrentLocation, string(b.Status), nullableInt(b.ETA),
			string(schedule), b.Capacity, lastUpdated.UTC().Format(timeLayout), i,
		); err != nil {
			return false, fmt.Errorf("failed to insert bus %s: %w", b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

const sqliteBusColumns = `id, route, current_location, status, eta, schedule, capacity, last_updated`

// List returns every bus in directory order.
func (s *SQLiteStore) List(ctx context.Context) ([]bus.Bus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteBusColumns+` FROM buses ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query buses: %w", err)
	}
	defer rows.Close()

	buses := make([]bus.Bus, 0)
	for rows.Next() {
		b, err := scanSQLiteBus(rows)
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
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (bus.Bus, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteBusColumns+` FROM buses WHERE id = ?`, id)
	b, err := scanSQLiteBus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return bus.Bus{}, false, nil
	}
	if err != nil {
		return bus.Bus{}, false, err
	}
	return b, true, nil
}

// Update merges patch into the stored bus inside a transaction.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch bus.Patch) (bus.Bus, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return bus.Bus{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanSQLiteBus(tx.QueryRowContext(ctx, `SELECT `+sqliteBusColumns+` FROM buses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
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

	_, err = tx.ExecContext(ctx, `
		UPDATE buses
		SET route = ?, current_location = ?, status = ?, eta = ?, schedule = ?, capacity = ?, last_updated = ?
		WHERE id = ?
	`, updated.Route, updated.CurrentLocation, string(updated.Status), nullableInt(updated.ETA),
		string(schedule), updated.Capacity, updated.LastUpdated.UTC().Format(timeLayout), id)
	if err != nil {
		return bus.Bus{}, false, fmt.Errorf("failed to update bus %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return bus.Bus{}, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, true, nil
}

// Append inserts a chat message.
func (s *SQLiteStore) Append(ctx context.Context, message chat.Message) (chat.Message, error) {
	message = chat.Prepare(message, time.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, content, is_user, timestamp)
		VALUES (?, ?, ?, ?)
	`, message.ID, message.Content, message.UserFlag(), message.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return chat.Message{}, fmt.Errorf("failed to insert chat message: %w", err)
	}
	return message, nil
}

// Messages returns the transcript newest first.
func (s *SQLiteStore) Messages(ctx context.Context) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, is_user, timestamp
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
			m         chat.Message
			isUser    int
			timestamp string
		)
		if err := rows.Scan(&m.ID, &m.Content, &isUser, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		m.IsUser = isUser == 1
		if ts := parseTimeString(&timestamp); ts != nil {
			m.Timestamp = *ts
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat message rows: %w", err)
	}
	return messages, nil
}

// ChatLog adapts the store to chat.Store, whose List would otherwise clash
// with bus.Store.List.
func (s *SQLiteStore) ChatLog() chat.Store {
	return sqliteChatLog{s}
}

type sqliteChatLog struct{ s *SQLiteStore }

func (l sqliteChatLog) Append(ctx context.Context, message chat.Message) (chat.Message, error) {
	return l.s.Append(ctx, message)
}

func (l sqliteChatLog) List(ctx context.Context) ([]chat.Message, error) {
	return l.s.Messages(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteBus(row rowScanner) (bus.Bus, error) {
	var (
		b           bus.Bus
		status      string
		eta         sql.NullInt64
		schedule    string
		lastUpdated string
	)
	err := row.Scan(&b.ID, &b.Route, &b.CurrentLocation, &status, &eta, &schedule, &b.Capacity, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return bus.Bus{}, err
	}
	if err != nil {
		return bus.Bus{}, fmt.Errorf("failed to scan bus row: %w", err)
	}

	b.Status = bus.Status(status)
	if eta.Valid {
		b.ETA = bus.IntPtr(int(eta.Int64))
	}
	if err := json.Unmarshal([]byte(schedule), &b.Schedule); err != nil {
		return bus.Bus{}, fmt.Errorf("failed to decode schedule for bus %s: %w", b.ID, err)
	}
	if ts := parseTimeString(&lastUpdated); ts != nil {
		b.LastUpdated = *ts
	}
	return b, nil
}

// parseTimeString converts an RFC3339 string to *time.Time.
// Returns nil if the input is nil, empty or malformed.
func parseTimeString(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
