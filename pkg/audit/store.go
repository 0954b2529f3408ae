package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"helpdesk-hq/beacon/pkg/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	decision_id       TEXT PRIMARY KEY,
	conversation_id   TEXT NOT NULL,
	turn_id           TEXT,
	decided_at        INTEGER NOT NULL,
	escalate          INTEGER NOT NULL,
	where_decided     TEXT NOT NULL,
	score             REAL NOT NULL,
	threshold         REAL NOT NULL,
	fired_rules       TEXT,
	reason            TEXT,
	latency_ms        REAL,
	policy_version    TEXT,
	model_version     TEXT,
	redacted_user_text TEXT,
	redacted_bot_text  TEXT
);
CREATE INDEX IF NOT EXISTS idx_decisions_conversation ON decisions(conversation_id, decided_at);
CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at);
`

// StoreConfig contains configuration for the SQLite audit store.
type StoreConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections. Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections. Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging. Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultStoreConfig returns the default audit store configuration.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Store persists decision records in SQLite.
type Store struct {
	db     *sql.DB
	config *StoreConfig
	logger *slog.Logger
}

// NewStore opens the audit database and initializes the schema.
func NewStore(config *StoreConfig, logger *slog.Logger) (*Store, error) {
	if config == nil {
		config = DefaultStoreConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.store")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &Store{db: db, config: config, logger: logger}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("audit store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

func (s *Store) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable wal: %w", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Insert persists one decision record.
func (s *Store) Insert(ctx context.Context, rec *engine.DecisionRecord) error {
	firedRules, _ := json.Marshal(rec.FiredRules)

	query := `
		INSERT INTO decisions (
			decision_id, conversation_id, turn_id, decided_at,
			escalate, where_decided, score, threshold,
			fired_rules, reason, latency_ms,
			policy_version, model_version,
			redacted_user_text, redacted_bot_text
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.DecisionID, rec.ConversationID, rec.TurnID, time.Now().Unix(),
		rec.Escalate, string(rec.Where), rec.Score, rec.Threshold,
		string(firedRules), rec.Reason, rec.LatencyMS,
		rec.PolicyVersion, rec.ModelVersion,
		rec.RedactedUserText, rec.RedactedBotText,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// ListByConversation returns the most recent decision records for one
// conversation, newest first.
func (s *Store) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*engine.DecisionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT decision_id, conversation_id, turn_id,
			escalate, where_decided, score, threshold,
			fired_rules, reason, latency_ms,
			policy_version, model_version,
			redacted_user_text, redacted_bot_text
		FROM decisions
		WHERE conversation_id = ?
		ORDER BY decided_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	records := []*engine.DecisionRecord{}
	for rows.Next() {
		var rec engine.DecisionRecord
		var where string
		var firedRules sql.NullString
		var turnID, reason, policyVersion, modelVersion sql.NullString
		var userText, botText sql.NullString
		var latency sql.NullInt64

		err := rows.Scan(
			&rec.DecisionID, &rec.ConversationID, &turnID,
			&rec.Escalate, &where, &rec.Score, &rec.Threshold,
			&firedRules, &reason, &latency,
			&policyVersion, &modelVersion,
			&userText, &botText,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}

		rec.Where = engine.Where(where)
		rec.TurnID = turnID.String
		rec.Reason = reason.String
		rec.LatencyMS = latency.Int64
		rec.PolicyVersion = policyVersion.String
		rec.ModelVersion = modelVersion.String
		rec.RedactedUserText = userText.String
		rec.RedactedBotText = botText.String
		if firedRules.Valid && firedRules.String != "" {
			if err := json.Unmarshal([]byte(firedRules.String), &rec.FiredRules); err != nil {
				return nil, fmt.Errorf("decode fired rules: %w", err)
			}
		}

		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}

	return records, nil
}

// Prune deletes decision records older than the given cutoff and returns
// how many were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM decisions WHERE decided_at < ?", olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune decisions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune decisions: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
