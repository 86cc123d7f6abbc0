// Package timeline keeps a sqlite log of relayed exchanges for the status
// endpoint and the doctor command. Session state is never stored here.
package timeline

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Service wraps the exchange log database.
type Service struct {
	db *sql.DB
}

// NewService opens (creating if needed) the exchange log at dbPath.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open exchange db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close releases the database handle.
func (s *Service) Close() error {
	return s.db.Close()
}

// Record inserts one exchange. A zero timestamp is filled in.
func (s *Service) Record(ex *Exchange) error {
	if ex.Timestamp.IsZero() {
		ex.Timestamp = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO exchanges (trace_id, user_id, conversation_id, content_in, content_out, status, error_text, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.TraceID, ex.UserID, ex.ConversationID, ex.ContentIn, ex.ContentOut, ex.Status, ex.ErrorText, ex.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	ex.ID, _ = res.LastInsertId()
	return nil
}

// Recent returns the latest limit exchanges, newest first.
func (s *Service) Recent(limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, trace_id, user_id, conversation_id, content_in, content_out, status, error_text, timestamp
		FROM exchanges ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		var convID, contentOut, errText sql.NullString
		if err := rows.Scan(&ex.ID, &ex.TraceID, &ex.UserID, &convID, &ex.ContentIn, &contentOut, &ex.Status, &errText, &ex.Timestamp); err != nil {
			return nil, err
		}
		ex.ConversationID = convID.String
		ex.ContentOut = contentOut.String
		ex.ErrorText = errText.String
		out = append(out, ex)
	}
	return out, rows.Err()
}

// CountByStatus aggregates exchange outcomes.
func (s *Service) CountByStatus() (Counts, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM exchanges GROUP BY status`)
	if err != nil {
		return Counts{}, err
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, err
		}
		c.Total += n
		switch status {
		case StatusReplied:
			c.Replied = n
		case StatusFailed:
			c.Failed = n
		}
	}
	return c, rows.Err()
}
