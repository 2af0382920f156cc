package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

// ConversationRepository appends turns. There is no update path; history is
// immutable once written.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn domain.ConversationTurn) error {
	answerJSON, err := json.Marshal(turn.Answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	citations := turn.Citations
	if citations == nil {
		citations = []domain.SourceCitation{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO conversation_turns (
	conversation_id, ts, user_text, detected_language, canonical_text, answer, citations, processing_time_ms
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		turn.ConversationID, turn.Timestamp, turn.UserText, turn.DetectedLanguage,
		turn.CanonicalText, answerJSON, citationsJSON, turn.ProcessingTimeMs,
	)
	if err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}
	return nil
}

// ListTurns returns a conversation's history in timestamp order.
func (r *ConversationRepository) ListTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT conversation_id, ts, user_text, detected_language, canonical_text, answer, citations, processing_time_ms
FROM conversation_turns
WHERE conversation_id = $1
ORDER BY ts ASC
LIMIT $2
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var turn domain.ConversationTurn
		var answerRaw, citationsRaw []byte
		var detected, canonical sql.NullString

		err := rows.Scan(
			&turn.ConversationID, &turn.Timestamp, &turn.UserText, &detected,
			&canonical, &answerRaw, &citationsRaw, &turn.ProcessingTimeMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		turn.DetectedLanguage = detected.String
		turn.CanonicalText = canonical.String
		if err := json.Unmarshal(answerRaw, &turn.Answer); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		if err := json.Unmarshal(citationsRaw, &turn.Citations); err != nil {
			return nil, fmt.Errorf("unmarshal citations: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation turns: %w", err)
	}
	return turns, nil
}
