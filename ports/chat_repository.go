package ports

import (
	"context"

	"sansfit/domain/sans"
)

// ChatRepository persists chat transcripts per browser session.
type ChatRepository interface {
	SaveMessage(ctx context.Context, sessionID string, msg sans.ChatMessage) error
	History(ctx context.Context, sessionID string) ([]sans.ChatMessage, error)
	Clear(ctx context.Context, sessionID string) error
}
