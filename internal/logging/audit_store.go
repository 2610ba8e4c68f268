package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/corrtrace/corrtrace/internal/errors"
	_ "modernc.org/sqlite"
)

// AuditStore persists audit events
type AuditStore interface {
	SaveEvent(event *AuditEvent) error
	SaveEventAsync(event *AuditEvent)
	QueryEvents(ctx context.Context, filters AuditQueryFilters) ([]*AuditEvent, error)
	CountEvents(ctx context.Context, filters AuditQueryFilters) (int, error)
	Close() error
}

// AuditQueryFilters narrows audit event queries
type AuditQueryFilters struct {
	EventType string
	Action    string
	Status    string
	Resource  string
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc bool
}

// SQLiteAuditStore provides SQLite-based storage for audit events with WAL
// mode. It is thread-safe and supports concurrent access.
type SQLiteAuditStore struct {
	db     *sql.DB
	logger *Logger

	eventChan chan *AuditEvent
	workerWg  sync.WaitGroup

	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	retentionDays int

	closeOnce sync.Once
}

// NewSQLiteAuditStore creates a new SQLite audit store with default retention
func NewSQLiteAuditStore(dbPath string) (*SQLiteAuditStore, error) {
	return NewSQLiteAuditStoreWithRetention(dbPath, 30) // Default 30 days retention
}

// NewSQLiteAuditStoreWithRetention creates a new SQLite audit store with
// custom retention. A retention of 0 disables the periodic cleanup.
func NewSQLiteAuditStoreWithRetention(dbPath string, retentionDays int) (*SQLiteAuditStore, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	// Open database with WAL mode enabled
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	store := &SQLiteAuditStore{
		db:            db,
		logger:        NewLogger(),
		eventChan:     make(chan *AuditEvent, 256),
		retentionDays: retentionDays,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	store.workerWg.Add(1)
	go store.saveWorker()

	if retentionDays > 0 {
		store.cleanupTicker = time.NewTicker(time.Hour)
		store.cleanupDone = make(chan struct{})
		go store.cleanupWorker()
	}

	return store, nil
}

func (s *SQLiteAuditStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL DEFAULT '',
		resource TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		operation_id TEXT NOT NULL DEFAULT '',
		transaction_id TEXT NOT NULL DEFAULT '',
		operation_parent_id TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "migrate", Err: err}
	}
	return nil
}

// SaveEvent persists an audit event synchronously
func (s *SQLiteAuditStore) SaveEvent(event *AuditEvent) error {
	details := ""
	if event.Details != nil {
		data, err := json.Marshal(event.Details)
		if err == nil {
			details = string(data)
		}
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO audit_events
		(id, timestamp, event_type, severity, ip_address, action, resource, status,
		 operation_id, transaction_id, operation_parent_id, details, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UnixNano(),
		string(event.EventType),
		string(event.Severity),
		event.IPAddress,
		event.Action,
		event.Resource,
		string(event.Status),
		event.OperationID,
		event.TransactionID,
		event.OperationParentID,
		details,
		event.ErrorMessage,
	)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "save_event", Err: err}
	}
	return nil
}

// SaveEventAsync queues an audit event for persistence without blocking the
// request. Events are dropped when the queue is full.
func (s *SQLiteAuditStore) SaveEventAsync(event *AuditEvent) {
	select {
	case s.eventChan <- event:
	default:
		s.logger.Warn("audit event dropped, queue full", "event_type", string(event.EventType))
	}
}

func (s *SQLiteAuditStore) saveWorker() {
	defer s.workerWg.Done()
	for event := range s.eventChan {
		if err := s.SaveEvent(event); err != nil {
			s.logger.Error("failed to save audit event", "error", err.Error())
		}
	}
}

func (s *SQLiteAuditStore) cleanupWorker() {
	for {
		select {
		case <-s.cleanupDone:
			return
		case <-s.cleanupTicker.C:
			s.cleanupOldData()
		}
	}
}

func (s *SQLiteAuditStore) cleanupOldData() {
	if s.retentionDays <= 0 {
		return
	}
	retention := time.Duration(s.retentionDays) * 24 * time.Hour
	deleted, err := s.CleanupOldEvents(context.Background(), retention)
	if err != nil {
		s.logger.Error("audit cleanup failed", "error", err.Error())
		return
	}
	if deleted > 0 {
		s.logger.Debug("audit cleanup removed events", "count", deleted)
	}
}

// CleanupOldEvents removes events older than maxAge and returns how many
// rows were deleted
func (s *SQLiteAuditStore) CleanupOldEvents(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "cleanup_events", Err: err}
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

// GetEventByID returns a single event or nil when not found
func (s *SQLiteAuditStore) GetEventByID(ctx context.Context, id string) (*AuditEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, event_type, severity, ip_address, action, resource, status,
		       operation_id, transaction_id, operation_parent_id, details, error_message
		FROM audit_events WHERE id = ?`, id)

	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get_event", Err: err}
	}
	return event, nil
}

// QueryEvents returns events matching the filters
func (s *SQLiteAuditStore) QueryEvents(ctx context.Context, filters AuditQueryFilters) ([]*AuditEvent, error) {
	query, args := buildEventQuery("SELECT id, timestamp, event_type, severity, ip_address, action, resource, status, operation_id, transaction_id, operation_parent_id, details, error_message FROM audit_events", filters, true)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "query_events", Err: err}
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "query_events", Err: err}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CountEvents returns the number of events matching the filters
func (s *SQLiteAuditStore) CountEvents(ctx context.Context, filters AuditQueryFilters) (int, error) {
	query, args := buildEventQuery("SELECT COUNT(*) FROM audit_events", filters, false)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count_events", Err: err}
	}
	return count, nil
}

// Close stops the background workers and closes the database
func (s *SQLiteAuditStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cleanupTicker != nil {
			s.cleanupTicker.Stop()
			close(s.cleanupDone)
		}
		close(s.eventChan)
		s.workerWg.Wait()
		err = s.db.Close()
	})
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*AuditEvent, error) {
	var event AuditEvent
	var timestamp int64
	var eventType, severity, status, details string

	err := row.Scan(
		&event.ID,
		&timestamp,
		&eventType,
		&severity,
		&event.IPAddress,
		&event.Action,
		&event.Resource,
		&status,
		&event.OperationID,
		&event.TransactionID,
		&event.OperationParentID,
		&details,
		&event.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	event.Timestamp = time.Unix(0, timestamp).UTC()
	event.EventType = AuditEventType(eventType)
	event.Severity = AuditSeverity(severity)
	event.Status = AuditStatus(status)
	if details != "" {
		_ = json.Unmarshal([]byte(details), &event.Details)
	}
	return &event, nil
}

func buildEventQuery(base string, filters AuditQueryFilters, ordered bool) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filters.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, filters.EventType)
	}
	if filters.Action != "" {
		conds = append(conds, "action LIKE ?")
		args = append(args, filters.Action+"%")
	}
	if filters.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filters.Status)
	}
	if filters.Resource != "" {
		conds = append(conds, "resource = ?")
		args = append(args, filters.Resource)
	}

	query := base
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	if ordered {
		orderBy := filters.OrderBy
		if orderBy != "timestamp" && orderBy != "event_type" {
			orderBy = "timestamp"
		}
		direction := "ASC"
		if filters.OrderDesc {
			direction = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", orderBy, direction)

		if filters.Limit > 0 {
			query += " LIMIT ?"
			args = append(args, filters.Limit)
			if filters.Offset > 0 {
				query += " OFFSET ?"
				args = append(args, filters.Offset)
			}
		}
	}

	return query, args
}

// MemoryAuditStore keeps audit events in memory. Intended for tests and for
// running without an audit database.
type MemoryAuditStore struct {
	mu     sync.RWMutex
	events []*AuditEvent
}

// NewMemoryAuditStore creates an in-memory audit store
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// SaveEvent stores the event in memory
func (s *MemoryAuditStore) SaveEvent(event *AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// SaveEventAsync stores the event; the memory store never blocks
func (s *MemoryAuditStore) SaveEventAsync(event *AuditEvent) {
	_ = s.SaveEvent(event)
}

// QueryEvents returns events matching the filters, newest first
func (s *MemoryAuditStore) QueryEvents(_ context.Context, filters AuditQueryFilters) ([]*AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*AuditEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if filters.EventType != "" && string(e.EventType) != filters.EventType {
			continue
		}
		if filters.Status != "" && string(e.Status) != filters.Status {
			continue
		}
		if filters.Resource != "" && e.Resource != filters.Resource {
			continue
		}
		out = append(out, e)
		if filters.Limit > 0 && len(out) >= filters.Limit {
			break
		}
	}
	return out, nil
}

// CountEvents returns the number of events matching the filters
func (s *MemoryAuditStore) CountEvents(ctx context.Context, filters AuditQueryFilters) (int, error) {
	unlimited := filters
	unlimited.Limit = 0
	events, err := s.QueryEvents(ctx, unlimited)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// Close is a no-op for the memory store
func (s *MemoryAuditStore) Close() error {
	return nil
}
