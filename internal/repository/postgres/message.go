package postgres

import (
	"context"
	"fmt"

	"github.com/ovialab/cliniguard-server/internal/model"
)

var _ model.MessageStore = (*MessageRepository)(nil)

type MessageRepository struct {
	db *Connection
}

func NewMessageRepository(db *Connection) *MessageRepository {
	return &MessageRepository{
		db: db,
	}
}

func (r *MessageRepository) Create(ctx context.Context, m model.Message) (model.Message, error) {
	query := `INSERT INTO messages (sender_id, recipient_id, body)
			  VALUES ($1, $2, $3)
			  RETURNING id, sender_id, recipient_id, body, sent_at`

	var saved model.Message
	err := r.db.q(ctx).QueryRow(ctx, query, m.SenderID, m.RecipientID, m.Body).Scan(
		&saved.ID, &saved.SenderID, &saved.RecipientID, &saved.Body, &saved.SentAt,
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to create message: %w", err)
	}

	return saved, nil
}

func (r *MessageRepository) GetBetween(ctx context.Context, a, b int64) ([]model.Message, error) {
	query := `SELECT id, sender_id, recipient_id, body, sent_at
			  FROM messages
			  WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
			  ORDER BY sent_at ASC`

	rows, err := r.db.q(ctx).Query(ctx, query, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// DeleteByParticipant removes every message the account sent or received.
func (r *MessageRepository) DeleteByParticipant(ctx context.Context, accountID int64) (int64, error) {
	query := `DELETE FROM messages WHERE sender_id = $1 OR recipient_id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages by participant: %w", err)
	}
	return cmd.RowsAffected(), nil
}
