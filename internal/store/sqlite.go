// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides agent/history/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wallboard/wallboard/internal/status"
)

// newID generates a row identifier.
func newID() string {
	return uuid.New().String()
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			agent_code TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			department TEXT NOT NULL DEFAULT 'General',
			skills TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Available',
			is_active INTEGER NOT NULL DEFAULT 1,
			is_online INTEGER NOT NULL DEFAULT 0,
			session_id TEXT,
			login_time TEXT,
			last_status_change TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status);
		CREATE INDEX IF NOT EXISTS idx_agents_department ON agents(department);

		CREATE TABLE IF NOT EXISTS status_history (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			reason TEXT,
			at TEXT NOT NULL,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_status_history_agent
			ON status_history(agent_id, at);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			recipient TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateAgent inserts a new agent record.
// Returns ErrDuplicateAgent if the agent code or email is already taken.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	query := `
		INSERT INTO agents (id, agent_code, name, email, department, skills, status,
			is_active, is_online, session_id, login_time, last_status_change, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		agent.ID,
		agent.AgentCode,
		agent.Name,
		agent.Email,
		agent.Department,
		strings.Join(agent.Skills, ","),
		string(agent.Status),
		boolToInt(agent.IsActive),
		boolToInt(agent.IsOnline),
		agent.SessionID,
		formatNullableTime(agent.LoginTime),
		agent.LastStatusChangeAt.UTC().Format(time.RFC3339),
		agent.CreatedAt.UTC().Format(time.RFC3339),
		agent.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateAgent
		}
		return fmt.Errorf("inserting agent: %w", err)
	}

	s.logger.Debug("created agent", "id", agent.ID, "agent_code", agent.AgentCode)
	return nil
}

const agentColumns = `id, agent_code, name, email, department, skills, status,
	is_active, is_online, session_id, login_time, last_status_change, created_at, updated_at`

// scanAgent reads one agent row from a *sql.Row or *sql.Rows scanner.
func scanAgent(scan func(dest ...any) error) (*Agent, error) {
	var a Agent
	var skills, statusStr string
	var isActive, isOnline int
	var sessionID, loginTimeStr sql.NullString
	var lastChangeStr, createdAtStr, updatedAtStr string

	err := scan(
		&a.ID, &a.AgentCode, &a.Name, &a.Email, &a.Department, &skills, &statusStr,
		&isActive, &isOnline, &sessionID, &loginTimeStr, &lastChangeStr, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if skills != "" {
		a.Skills = strings.Split(skills, ",")
	}
	a.Status = status.Status(statusStr)
	a.IsActive = isActive != 0
	a.IsOnline = isOnline != 0
	if sessionID.Valid {
		a.SessionID = &sessionID.String
	}
	if loginTimeStr.Valid {
		t, err := time.Parse(time.RFC3339, loginTimeStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing login_time: %w", err)
		}
		a.LoginTime = &t
	}

	if a.LastStatusChangeAt, err = time.Parse(time.RFC3339, lastChangeStr); err != nil {
		return nil, fmt.Errorf("parsing last_status_change: %w", err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &a, nil
}

// GetAgent retrieves an agent by ID.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	agent, err := scanAgent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent: %w", err)
	}
	return agent, nil
}

// GetAgentByCode retrieves an agent by its unique agent code.
// Returns ErrNotFound if no agent has that code.
func (s *SQLiteStore) GetAgentByCode(ctx context.Context, code string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE agent_code = ?`, code)
	agent, err := scanAgent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent by code: %w", err)
	}
	return agent, nil
}

// ListAgents returns agents matching the filter, ordered by agent code.
func (s *SQLiteStore) ListAgents(ctx context.Context, filter AgentFilter) ([]*Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents`
	var conds []string
	var args []any

	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Department != nil {
		conds = append(conds, "department = ?")
		args = append(args, *filter.Department)
	}
	if filter.IsOnline != nil {
		conds = append(conds, "is_online = ?")
		args = append(args, boolToInt(*filter.IsOnline))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY agent_code"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		agent, err := scanAgent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// UpdateAgent updates an agent's mutable profile fields.
// The agent code and status columns are deliberately not written here:
// the code is immutable and status goes through UpdateAgentStatus only.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) UpdateAgent(ctx context.Context, agent *Agent) error {
	query := `
		UPDATE agents
		SET name = ?, email = ?, department = ?, skills = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		agent.Name,
		agent.Email,
		agent.Department,
		strings.Join(agent.Skills, ","),
		boolToInt(agent.IsActive),
		time.Now().UTC().Format(time.RFC3339),
		agent.ID,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateAgent
		}
		return fmt.Errorf("updating agent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAgent removes an agent and returns the deleted record.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, id string) (*Agent, error) {
	agent, err := s.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting agent: %w", err)
	}

	s.logger.Debug("deleted agent", "id", id, "agent_code", agent.AgentCode)
	return agent, nil
}

// UpdateAgentStatus writes the new status and its history entry in one
// transaction, so readers never observe the status without its audit record.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) UpdateAgentStatus(ctx context.Context, agentID string, from, to status.Status, reason *string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	atStr := at.UTC().Format(time.RFC3339)

	result, err := tx.ExecContext(ctx,
		`UPDATE agents SET status = ?, last_status_change = ?, updated_at = ? WHERE id = ?`,
		string(to), atStr, atStr, agentID,
	)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO status_history (id, agent_id, from_status, to_status, reason, at) VALUES (?, ?, ?, ?, ?, ?)`,
		newID(), agentID, string(from), string(to), reason, atStr,
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}

	return tx.Commit()
}

// StatusHistory returns an agent's transition history, oldest first.
func (s *SQLiteStore) StatusHistory(ctx context.Context, agentID string) ([]*StatusHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, from_status, to_status, reason, at FROM status_history WHERE agent_id = ? ORDER BY at, id`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	var entries []*StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		var from, to, atStr string
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.AgentID, &from, &to, &reason, &atStr); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		e.From = status.Status(from)
		e.To = status.Status(to)
		if reason.Valid {
			e.Reason = &reason.String
		}
		if e.At, err = time.Parse(time.RFC3339, atStr); err != nil {
			return nil, fmt.Errorf("parsing history timestamp: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// SetAgentOnline flips the online flag and session back-reference for the
// agent with the given code. Returns ErrNotFound if no agent has that code.
func (s *SQLiteStore) SetAgentOnline(ctx context.Context, code string, online bool, sessionID *string, loginTime *time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE agents SET is_online = ?, session_id = ?, login_time = ?, updated_at = ? WHERE agent_code = ?`,
		boolToInt(online),
		sessionID,
		formatNullableTime(loginTime),
		time.Now().UTC().Format(time.RFC3339),
		code,
	)
	if err != nil {
		return fmt.Errorf("updating online flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveMessage persists a message.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender, recipient, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.From, msg.To, msg.Content, msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListMessages returns all messages, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context) ([]*Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, sender, recipient, content, created_at FROM messages ORDER BY created_at DESC, id DESC`)
}

// MessagesForAgent returns messages addressed to the given code or to ALL, newest first.
func (s *SQLiteStore) MessagesForAgent(ctx context.Context, code string) ([]*Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, sender, recipient, content, created_at FROM messages
		 WHERE recipient = ? OR recipient = ? ORDER BY created_at DESC, id DESC`,
		code, MessageTargetAll)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		var createdAtStr string
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Content, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// DeleteMessage removes a message by ID.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Counts computes the dashboard aggregates in a single pass over active agents.
func (s *SQLiteStore) Counts(ctx context.Context) (*CountsSnapshot, error) {
	snapshot := &CountsSnapshot{StatusBreakdown: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, is_online, COUNT(*) FROM agents WHERE is_active = 1 GROUP BY status, is_online`)
	if err != nil {
		return nil, fmt.Errorf("querying counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var statusStr string
		var isOnline, count int
		if err := rows.Scan(&statusStr, &isOnline, &count); err != nil {
			return nil, fmt.Errorf("scanning counts: %w", err)
		}
		snapshot.TotalAgents += count
		if isOnline != 0 {
			snapshot.OnlineAgents += count
			snapshot.StatusBreakdown[statusStr] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snapshot.OfflineAgents = snapshot.TotalAgents - snapshot.OnlineAgents
	return snapshot, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatNullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
