package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"sansfit/domain/sans"
	"sansfit/ports"
)

// Connect opens a postgres connection pool from a database URL.
func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Schema for the chat transcript table. Applied at startup; IF NOT
// EXISTS keeps restarts idempotent.
const chatSchema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id UUID PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	tool_invocations JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages (session_id, created_at);
`

// chatRepository implements ports.ChatRepository over postgres.
type chatRepository struct {
	db *sqlx.DB
}

// NewChatRepository creates the repository and ensures its schema.
func NewChatRepository(db *sqlx.DB) (ports.ChatRepository, error) {
	if _, err := db.Exec(chatSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure chat schema: %w", err)
	}
	return &chatRepository{db: db}, nil
}

func (r *chatRepository) SaveMessage(ctx context.Context, sessionID string, msg sans.ChatMessage) error {
	var invocations []byte
	if len(msg.ToolInvocations) > 0 {
		var err error
		invocations, err = json.Marshal(msg.ToolInvocations)
		if err != nil {
			return fmt.Errorf("failed to marshal tool invocations: %w", err)
		}
	}

	query := `INSERT INTO chat_messages (id, session_id, role, content, tool_invocations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), sessionID, msg.Role, msg.Content, invocations, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

func (r *chatRepository) History(ctx context.Context, sessionID string) ([]sans.ChatMessage, error) {
	query := `SELECT role, content, COALESCE(tool_invocations, 'null'::jsonb) AS tool_invocations
		FROM chat_messages WHERE session_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	defer rows.Close()

	var history []sans.ChatMessage
	for rows.Next() {
		var msg sans.ChatMessage
		var invocations []byte
		if err := rows.Scan(&msg.Role, &msg.Content, &invocations); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		if len(invocations) > 0 {
			if err := json.Unmarshal(invocations, &msg.ToolInvocations); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool invocations: %w", err)
			}
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

func (r *chatRepository) Clear(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}
