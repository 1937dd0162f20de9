package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

// ConversationRepository is an append-only turn log. Order is the insertion
// sequence, not the client-supplied timestamp.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversation_turns (id, conversation_id, question, answer, created_at)
VALUES ($1, $2, $3, $4, $5)
`, turn.ID, turn.ConversationID, turn.Question, turn.Answer, turn.CreatedAt)
	if err != nil {
		return domain.WrapError(domain.ErrConversationStore, "append turn", err)
	}
	return nil
}

func (r *ConversationRepository) LoadTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, `
SELECT id, conversation_id, question, answer, created_at
FROM conversation_turns
WHERE conversation_id = $1
ORDER BY seq DESC
LIMIT $2
`, conversationID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
SELECT id, conversation_id, question, answer, created_at
FROM conversation_turns
WHERE conversation_id = $1
ORDER BY seq ASC
`, conversationID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrConversationStore, "load turns", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationTurn, 0)
	for rows.Next() {
		var turn domain.ConversationTurn
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.Question, &turn.Answer, &turn.CreatedAt); err != nil {
			return nil, domain.WrapError(domain.ErrConversationStore, "scan turn", err)
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrConversationStore, "iterate turns", err)
	}

	if limit > 0 {
		// Newest-first from SQL; reverse to chronological.
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}
