package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// ChatRepo provides access to the append-only family chat.
type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo { return &ChatRepo{db: db} }

// MaxMessages caps how much history a single read returns.
const MaxMessages = 500

// ListByFamily returns up to limit of the most recent messages in ascending
// creation order. limit <= 0 or above MaxMessages means MaxMessages.
func (r *ChatRepo) ListByFamily(ctx context.Context, family string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > MaxMessages {
		limit = MaxMessages
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sender_id, message, created_at, family_code, profile_data FROM (
		   SELECT id, sender_id, message, created_at, family_code, profile_data
		   FROM chat_messages WHERE family_code = ? ORDER BY created_at DESC, id DESC LIMIT ?
		 ) recent ORDER BY created_at ASC, id ASC`,
		family, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ChatMessage{}
	for rows.Next() {
		var (
			m       model.ChatMessage
			profile sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Message, &m.CreatedAt, &m.FamilyCode, &profile); err != nil {
			return nil, err
		}
		m.ProfileData = decodeSnapshot[model.ProfileSnapshot](profile)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Create appends a message. ID and CreatedAt are filled in on success.
func (r *ChatRepo) Create(ctx context.Context, m *model.ChatMessage) error {
	profile, err := encodeSnapshot(m.ProfileData)
	if err != nil {
		return err
	}
	m.ID = uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, sender_id, message, family_code, profile_data) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.Message, m.FamilyCode, profile); err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM chat_messages WHERE id = ?`, m.ID).Scan(&m.CreatedAt)
}
