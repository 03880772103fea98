package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the registry and activity log in a SQLite database.
// The schema is dropped and recreated on open, so nothing survives a restart.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting across the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`DROP TABLE IF EXISTS error_tokens;`,
		`DROP TABLE IF EXISTS activity;`,
		`CREATE TABLE error_tokens (
			token TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			reason TEXT NOT NULL,
			timestamp TEXT
		);`,
		`CREATE TABLE activity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_token TEXT NOT NULL,
			request_headers TEXT NOT NULL,
			request_data TEXT NOT NULL,
			response_status INTEGER NOT NULL,
			response_data TEXT NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("error creating schema: %v", err)
		}
	}
	return nil
}

const upsertErrorToken = `
	INSERT INTO error_tokens (token, status, reason, timestamp) VALUES (?, ?, ?, ?)
	ON CONFLICT(token) DO UPDATE SET
		status = excluded.status,
		reason = excluded.reason,
		timestamp = excluded.timestamp`

// Error tokens
func (s *SQLiteStore) Upsert(entries []ErrorEntry) error {
	for _, e := range entries {
		token, cfg, err := e.Validate()
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(upsertErrorToken, token, string(cfg.Status), cfg.Reason, nullableRaw(cfg.Timestamp)); err != nil {
			return fmt.Errorf("failed to upsert error token %s: %w", token, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Replace(entries []ErrorEntry) error {
	configs, err := validateAll(entries)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM error_tokens`); err != nil {
		return fmt.Errorf("failed to clear error tokens: %w", err)
	}
	for token, cfg := range configs {
		if _, err := tx.Exec(upsertErrorToken, token, string(cfg.Status), cfg.Reason, nullableRaw(cfg.Timestamp)); err != nil {
			return fmt.Errorf("failed to insert error token %s: %w", token, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Lookup(token string) (ErrorConfig, bool, error) {
	var (
		cfg       ErrorConfig
		status    string
		timestamp sql.NullString
	)
	err := s.db.QueryRow(`SELECT status, reason, timestamp FROM error_tokens WHERE token = ?`, token).
		Scan(&status, &cfg.Reason, &timestamp)
	if err == sql.ErrNoRows {
		return ErrorConfig{}, false, nil
	}
	if err != nil {
		return ErrorConfig{}, false, err
	}
	cfg.Status = json.RawMessage(status)
	if timestamp.Valid {
		cfg.Timestamp = json.RawMessage(timestamp.String)
	}
	return cfg, true, nil
}

func (s *SQLiteStore) ErrorTokens() (map[string]ErrorConfig, error) {
	rows, err := s.db.Query(`SELECT token, status, reason, timestamp FROM error_tokens`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make(map[string]ErrorConfig)
	for rows.Next() {
		var (
			token     string
			status    string
			cfg       ErrorConfig
			timestamp sql.NullString
		)
		if err := rows.Scan(&token, &status, &cfg.Reason, &timestamp); err != nil {
			return nil, err
		}
		cfg.Status = json.RawMessage(status)
		if timestamp.Valid {
			cfg.Timestamp = json.RawMessage(timestamp.String)
		}
		configs[token] = cfg
	}
	return configs, rows.Err()
}

func (s *SQLiteStore) ClearErrorTokens() error {
	_, err := s.db.Exec(`DELETE FROM error_tokens`)
	return err
}

// Activity
func (s *SQLiteStore) Append(rec ActivityRecord) error {
	headers, err := json.Marshal(rec.RequestHeaders)
	if err != nil {
		return fmt.Errorf("failed to encode request headers: %w", err)
	}
	response, err := json.Marshal(rec.ResponseData)
	if err != nil {
		return fmt.Errorf("failed to encode response data: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO activity (device_token, request_headers, request_data, response_status, response_data) VALUES (?, ?, ?, ?, ?)`,
		rec.DeviceToken, string(headers), string(rec.RequestData), rec.ResponseStatus, string(response),
	)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Activity() ([]ActivityRecord, error) {
	rows, err := s.db.Query(`SELECT device_token, request_headers, request_data, response_status, response_data FROM activity ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []ActivityRecord{}
	for rows.Next() {
		var rec ActivityRecord
		var headers, requestData, response string
		if err := rows.Scan(&rec.DeviceToken, &headers, &requestData, &rec.ResponseStatus, &response); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(headers), &rec.RequestHeaders); err != nil {
			return nil, fmt.Errorf("failed to decode request headers: %w", err)
		}
		if err := json.Unmarshal([]byte(response), &rec.ResponseData); err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
		rec.RequestData = json.RawMessage(requestData)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) ActivityCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT count(*) FROM activity`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) ClearActivity() error {
	_, err := s.db.Exec(`DELETE FROM activity`)
	return err
}

func (s *SQLiteStore) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM error_tokens`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM activity`); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
