// Package persistence implements the relational persistence worker of
// spec.md §4.4: validate, optionally encrypt, and store a broadcast
// message; and the session-status snapshot exporter of SPEC_FULL.md §D.1.
package persistence

import (
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/jmoiron/sqlx"

	"github.com/ngee044/realtimechat/internal/logging"
	"github.com/ngee044/realtimechat/internal/session"
)

// Config describes how to reach the relational store. It is intentionally
// richer than spec.md's terse mention of "a relational-store driver"
// since a real deployment needs pool sizing and timeouts — see
// SPEC_FULL.md §D.3.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) dsn() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

// Store wraps the Postgres connection the spec calls "PostgresDB".
type Store struct {
	db *sqlx.DB
}

func NewStore(cfg Config) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.Infof("connected to postgres at %s:%d (db=%s)", cfg.Host, cfg.Port, cfg.DBName)
	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an already-open handle instead of dialing one.
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) IsHealthy() bool {
	return s.db != nil && s.db.Ping() == nil
}

// InitSchema creates the messages table of spec.md §6 plus the
// session_status table backing SPEC_FULL.md §D.1's periodic snapshot.
// Idempotent: safe to call on every startup.
func (s *Store) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id              TEXT NOT NULL,
		sub_id          TEXT NOT NULL,
		publisher_info  TEXT NOT NULL,
		server_name     TEXT NOT NULL,
		message_content TEXT NOT NULL,
		is_encrypted    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_messages_id_sub_id ON messages(id, sub_id);
	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);

	CREATE TABLE IF NOT EXISTS session_status (
		id         TEXT NOT NULL,
		sub_id     TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (id, sub_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertMessage stores one persisted message. Using a parameterized query
// is the idiomatic Go replacement for the source's
// db_client_->escape_string(...)-then-concatenate pattern: both exist to
// make attacker-controlled text safe to embed in SQL, and a placeholder
// query is the safer, ecosystem-standard way to do that.
func (s *Store) InsertMessage(msg PersistedMessage) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, sub_id, publisher_info, server_name, message_content, is_encrypted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		msg.ID, msg.SubID, msg.PublisherInfo, msg.ServerName, msg.Content, msg.IsEncrypted,
	)
	return err
}

// UpsertSessionStatuses writes the current session snapshot, one row per
// (id, sub_id), for the periodic db_periodic_update_job of
// SPEC_FULL.md §D.1.
func (s *Store) UpsertSessionStatuses(snapshot map[session.Key]session.Record) error {
	if len(snapshot) == 0 {
		return nil
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, record := range snapshot {
		if _, err := tx.Exec(
			`INSERT INTO session_status (id, sub_id, status, updated_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (id, sub_id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()`,
			key.ID, key.SubID, record.Status,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// PersistedMessage is one row of the messages table, per spec.md §3/§6.
type PersistedMessage struct {
	ID            string    `db:"id"`
	SubID         string    `db:"sub_id"`
	PublisherInfo string    `db:"publisher_info"`
	ServerName    string    `db:"server_name"`
	Content       string    `db:"content"`
	IsEncrypted   bool      `db:"is_encrypted"`
	CreatedAt     time.Time `db:"created_at"`
}

// ListMessages returns the most recently created messages, newest first,
// capped at limit — the read side of SPEC_FULL.md §D.2's operator tool.
func (s *Store) ListMessages(limit int) ([]PersistedMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []PersistedMessage
	err := s.db.Select(&rows,
		`SELECT id, sub_id, publisher_info, server_name, message_content AS content, is_encrypted, created_at
		 FROM messages ORDER BY created_at DESC LIMIT $1`, limit)
	return rows, err
}

// GetMessages returns every persisted message for one session, oldest
// first.
func (s *Store) GetMessages(id, subID string) ([]PersistedMessage, error) {
	var rows []PersistedMessage
	err := s.db.Select(&rows,
		`SELECT id, sub_id, publisher_info, server_name, message_content AS content, is_encrypted, created_at
		 FROM messages WHERE id = $1 AND sub_id = $2 ORDER BY created_at ASC`, id, subID)
	return rows, err
}

// DeleteMessages removes every persisted message for one session and
// returns how many rows were removed.
func (s *Store) DeleteMessages(id, subID string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM messages WHERE id = $1 AND sub_id = $2`, id, subID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
