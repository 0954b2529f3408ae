package state

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for durable persistence.
// State survives restarts; a row whose updated_at is older than the TTL is
// treated as absent on load and removed by the periodic sweep.
//
// SQLiteBackend uses WAL mode and prepared statements, with a single writer
// connection as SQLite requires.
type SQLiteBackend struct {
	db  *sql.DB
	ttl time.Duration

	mu        sync.RWMutex
	closeOnce sync.Once

	saveStmt    *sql.Stmt
	loadStmt    *sql.Stmt
	cleanupStmt *sql.Stmt

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// SQLiteBackendConfig configures the SQLite state backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TTL is how long inactive conversation state remains loadable.
	// Default: 24 hours.
	TTL time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a SQLite state backend with default settings.
func NewSQLiteBackend(dbPath string, ttl time.Duration) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
		DBPath: dbPath,
		TTL:    ttl,
	})
}

// NewSQLiteBackendWithConfig creates a SQLite state backend with custom
// configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:  db,
		ttl: cfg.TTL,
		now: time.Now,
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversation_states (
		conversation_id TEXT PRIMARY KEY,
		turn_index INTEGER,
		prev_bot_text TEXT,
		no_progress_count REAL,
		bot_repeat_count REAL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversation_states_updated_at
		ON conversation_states(updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.saveStmt, err = s.db.Prepare(`
		INSERT INTO conversation_states (conversation_id, turn_index, prev_bot_text, no_progress_count, bot_repeat_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (conversation_id) DO UPDATE SET
			turn_index = excluded.turn_index,
			prev_bot_text = excluded.prev_bot_text,
			no_progress_count = excluded.no_progress_count,
			bot_repeat_count = excluded.bot_repeat_count,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save statement: %w", err)
	}

	s.loadStmt, err = s.db.Prepare(`
		SELECT turn_index, prev_bot_text, no_progress_count, bot_repeat_count, updated_at
		FROM conversation_states
		WHERE conversation_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM conversation_states
		WHERE updated_at < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return nil
}

// Load retrieves the state for a conversation id. An expired row is treated
// as absent; removal is left to the periodic sweep.
func (s *SQLiteBackend) Load(ctx context.Context, conversationID string) (*ConversationState, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Nullable scans: each field defaults independently, so a partial row
	// (e.g. written by an older schema) still loads as a valid state.
	var (
		turnIndex       sql.NullInt64
		prevBotText     sql.NullString
		noProgressCount sql.NullFloat64
		botRepeatCount  sql.NullFloat64
		updatedAt       int64
	)

	err := s.loadStmt.QueryRowContext(ctx, conversationID).Scan(
		&turnIndex,
		&prevBotText,
		&noProgressCount,
		&botRepeatCount,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	last := time.Unix(updatedAt, 0)
	if s.now().Sub(last) > s.ttl {
		return nil, nil
	}

	st := &ConversationState{
		TurnIndex:       int(turnIndex.Int64),
		PrevBotText:     prevBotText.String,
		NoProgressCount: noProgressCount.Float64,
		BotRepeatCount:  botRepeatCount.Float64,
		UpdatedAt:       last,
	}
	st.Normalize()

	return st, nil
}

// Save upserts the state for a conversation id, refreshing its TTL.
func (s *SQLiteBackend) Save(ctx context.Context, conversationID string, st ConversationState) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}

	st.UpdatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.saveStmt.ExecContext(ctx,
		conversationID,
		st.TurnIndex,
		st.PrevBotText,
		st.NoProgressCount,
		st.BotRepeatCount,
		st.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

// Cleanup removes entries last updated before the cutoff.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.cleanupStmt.ExecContext(ctx, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// TTL returns the configured inactivity TTL.
func (s *SQLiteBackend) TTL() time.Duration {
	return s.ttl
}

// Close releases backend resources. Close is idempotent.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		if s.saveStmt != nil {
			s.saveStmt.Close()
		}
		if s.loadStmt != nil {
			s.loadStmt.Close()
		}
		if s.cleanupStmt != nil {
			s.cleanupStmt.Close()
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}
