// Package repository persists archived blueprints, leads and turn events.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is the persistence interface used by the service layer.
type Store interface {
	CreateBlueprint(ctx context.Context, record *domain.BlueprintRecord) error
	GetBlueprint(ctx context.Context, recordID string) (*domain.BlueprintRecord, error)
	ListBlueprints(ctx context.Context, limit int) ([]domain.BlueprintRecord, error)
	UpdateBlueprintRemote(ctx context.Context, recordID, remoteID string) error

	CreateLead(ctx context.Context, lead *domain.Lead) error
	UpdateLeadRemote(ctx context.Context, leadID, remoteID string) error

	CreateEvent(ctx context.Context, event *domain.TurnEvent) error
	GetEvents(ctx context.Context, turnID string, types []string) ([]domain.TurnEvent, error)

	Close() error
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn and applies pending migrations.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateBlueprint inserts an archived blueprint.
func (s *SQLiteStore) CreateBlueprint(ctx context.Context, record *domain.BlueprintRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blueprints (record_id, title, content_json, remote_record_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		record.RecordID, record.Title, string(record.ContentJSON), nullString(record.RemoteRecordID), record.CreatedAt)
	return err
}

// GetBlueprint returns the blueprint with recordID, or nil when it does not exist.
func (s *SQLiteStore) GetBlueprint(ctx context.Context, recordID string) (*domain.BlueprintRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record_id, title, content_json, remote_record_id, created_at FROM blueprints WHERE record_id = ?`,
		recordID)
	record, err := scanBlueprint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListBlueprints returns the most recent blueprints first.
func (s *SQLiteStore) ListBlueprints(ctx context.Context, limit int) ([]domain.BlueprintRecord, error) {
	query := `SELECT record_id, title, content_json, remote_record_id, created_at FROM blueprints ORDER BY created_at DESC, record_id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.BlueprintRecord{}
	for rows.Next() {
		record, err := scanBlueprint(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// UpdateBlueprintRemote stores the Bitable record id of a synced blueprint.
func (s *SQLiteStore) UpdateBlueprintRemote(ctx context.Context, recordID, remoteID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE blueprints SET remote_record_id = ? WHERE record_id = ?`,
		remoteID, recordID)
	return err
}

// CreateLead inserts a contact lead.
func (s *SQLiteStore) CreateLead(ctx context.Context, lead *domain.Lead) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (lead_id, name, contact, blueprint_id, note, remote_record_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lead.LeadID, lead.Name, lead.Contact, nullString(lead.BlueprintID), nullString(lead.Note),
		nullString(lead.RemoteRecordID), lead.CreatedAt)
	return err
}

// UpdateLeadRemote stores the Bitable record id of a synced lead.
func (s *SQLiteStore) UpdateLeadRemote(ctx context.Context, leadID, remoteID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET remote_record_id = ? WHERE lead_id = ?`,
		remoteID, leadID)
	return err
}

// CreateEvent records a turn trace event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.TurnEvent) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turn_events (event_id, turn_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.TurnID, event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves the events of a turn in time order, optionally filtered by type.
func (s *SQLiteStore) GetEvents(ctx context.Context, turnID string, types []string) ([]domain.TurnEvent, error) {
	query := `SELECT event_id, turn_id, ts, type, payload FROM turn_events WHERE turn_id = ?`
	args := []interface{}{turnID}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}
	query += ` ORDER BY ts ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.TurnEvent{}
	for rows.Next() {
		var event domain.TurnEvent
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.TurnID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBlueprint(row rowScanner) (*domain.BlueprintRecord, error) {
	var record domain.BlueprintRecord
	var content string
	var remote sql.NullString
	if err := row.Scan(&record.RecordID, &record.Title, &content, &remote, &record.CreatedAt); err != nil {
		return nil, err
	}
	record.ContentJSON = json.RawMessage(content)
	if remote.Valid {
		record.RemoteRecordID = remote.String
	}
	return &record, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
