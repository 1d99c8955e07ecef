package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS command_journal (
        id TEXT PRIMARY KEY,
        ts INTEGER,
        topic TEXT,
        record TEXT
    );
CREATE TABLE IF NOT EXISTS command_entries (
        record_id TEXT,
        name TEXT,
        outcome TEXT
    );`

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteStoreWithDB(db)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreWithDB uses an already opened database.
func NewSQLiteStoreWithDB(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record and one row per entry in a transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO command_journal (id, ts, topic, record) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), rec.Topic, string(b)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert record: %w", err)
	}
	for _, e := range rec.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO command_entries (record_id, name, outcome) VALUES (?, ?, ?)`,
			rec.ID, e.Name, e.Outcome); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert entry: %w", err)
		}
	}
	return tx.Commit()
}

// Query returns records matching q in timestamp order.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT record FROM command_journal j WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND j.ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND j.ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Command != "" {
		query += ` AND EXISTS (SELECT 1 FROM command_entries e WHERE e.record_id = j.id AND e.name = ?)`
		args = append(args, q.Command)
	}
	query += ` ORDER BY j.ts`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
