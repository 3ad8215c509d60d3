package conversations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const defaultQueryTimeout = 10 * time.Second

type repoPG struct {
	pool    *pgxpool.Pool
	log     zerolog.Logger
	timeout time.Duration
}

func NewRepoPG(pool *pgxpool.Pool, log zerolog.Logger) Repository {
	return &repoPG{pool: pool, log: log, timeout: defaultQueryTimeout}
}

func (r *repoPG) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *repoPG) fail(op string, err error) error {
	r.log.Error().Err(err).Str("op", op).Msg("conversation query failed")
	return err
}

func (r *repoPG) GetByPhone(ctx context.Context, phone string) (*Conversation, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	var c Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT
			p.phone,
			p.name AS patient_name,
			p.email,
			c.id AS conversation_id,
			c.created_at AS conversation_start,
			c.updated_at AS conversation_last_activity,
			COUNT(m.id) AS total_messages,
			MIN(m.timestamp) AS first_message_time,
			MAX(m.timestamp) AS last_message_time
		FROM patients p
		LEFT JOIN conversations c ON p.id = c.patient_id
		LEFT JOIN messages m ON c.id = m.conversation_id
		WHERE p.phone = $1 AND c.id IS NOT NULL
		GROUP BY p.id, p.phone, p.name, p.email, c.id, c.created_at, c.updated_at`, phone).
		Scan(&c.Phone, &c.PatientName, &c.Email, &c.ConversationID,
			&c.ConversationStart, &c.ConversationLastActivity, &c.TotalMessages,
			&c.FirstMessageTime, &c.LastMessageTime)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, r.fail("get_conversation_by_phone", err)
	}
	return &c, nil
}

func (r *repoPG) MessagesByPhone(ctx context.Context, phone string) ([]*Message, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.conversation_id, m.sender_type, m.content, m.timestamp,
			m.sentiment_score, m.sentiment_label
		FROM messages m
		JOIN conversations c ON m.conversation_id = c.id
		JOIN patients p ON c.patient_id = p.id
		WHERE p.phone = $1
		ORDER BY m.timestamp ASC`, phone)
	if err != nil {
		return nil, r.fail("messages_by_phone", err)
	}
	defer rows.Close()
	var items []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderType, &m.Content,
			&m.Timestamp, &m.SentimentScore, &m.SentimentLabel); err != nil {
			return nil, r.fail("messages_by_phone", err)
		}
		items = append(items, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("messages_by_phone", err)
	}
	return items, nil
}

const listSelect = `
	SELECT
		p.phone,
		p.name AS patient_name,
		p.email,
		c.id AS conversation_id,
		COUNT(m.id) AS total_messages,
		MAX(m.timestamp) AS last_message_time,
		MAX(m.content) AS last_message_content,
		c.source AS conversation_source
	FROM patients p
	LEFT JOIN conversations c ON p.id = c.patient_id
	LEFT JOIN messages m ON c.id = m.conversation_id`

func (r *repoPG) scanListRows(rows pgx.Rows) ([]*ListItem, error) {
	var items []*ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.Phone, &it.PatientName, &it.Email, &it.ConversationID,
			&it.TotalMessages, &it.LastMessageTime, &it.LastMessageContent, &it.Source); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*ListItem, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, listSelect+`
		WHERE c.id IS NOT NULL
		GROUP BY p.id, p.phone, p.name, p.email, c.id, c.source
		ORDER BY MAX(m.timestamp) DESC NULLS LAST
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, r.fail("list_conversations", err)
	}
	defer rows.Close()
	items, err := r.scanListRows(rows)
	if err != nil {
		return nil, r.fail("list_conversations", err)
	}
	return items, nil
}

func (r *repoPG) Search(ctx context.Context, term string, limit, offset int) ([]*ListItem, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, listSelect+`
		WHERE c.id IS NOT NULL AND (
			p.name ILIKE $1 OR
			p.phone ILIKE $1 OR
			p.email ILIKE $1 OR
			m.content ILIKE $1
		)
		GROUP BY p.id, p.phone, p.name, p.email, c.id, c.source
		ORDER BY MAX(m.timestamp) DESC NULLS LAST
		LIMIT $2 OFFSET $3`, "%"+term+"%", limit, offset)
	if err != nil {
		return nil, r.fail("search_conversations", err)
	}
	defer rows.Close()
	items, err := r.scanListRows(rows)
	if err != nil {
		return nil, r.fail("search_conversations", err)
	}
	return items, nil
}

func (r *repoPG) Counts(ctx context.Context) (*Counts, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	var c Counts
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversations WHERE deleted_at IS NULL`).Scan(&c.Conversations); err != nil {
		return nil, r.fail("conversation_count", err)
	}
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE deleted_at IS NULL`).Scan(&c.Messages); err != nil {
		return nil, r.fail("message_count", err)
	}
	return &c, nil
}
