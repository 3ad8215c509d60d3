package conversations

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the summary view of one patient's message thread,
// aggregated from the conversation and its messages.
type Conversation struct {
	Phone                    string     `db:"phone" json:"phone"`
	PatientName              string     `db:"patient_name" json:"patient_name"`
	Email                    *string    `db:"email" json:"email,omitempty"`
	ConversationID           uuid.UUID  `db:"conversation_id" json:"conversation_id"`
	ConversationStart        time.Time  `db:"conversation_start" json:"conversation_start"`
	ConversationLastActivity time.Time  `db:"conversation_last_activity" json:"conversation_last_activity"`
	TotalMessages            int        `db:"total_messages" json:"total_messages"`
	FirstMessageTime         *time.Time `db:"first_message_time" json:"first_message_time"`
	LastMessageTime          *time.Time `db:"last_message_time" json:"last_message_time"`
}

// Message is one message within a conversation, with optional sentiment
// annotations from the upstream analysis pipeline.
type Message struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ConversationID uuid.UUID  `db:"conversation_id" json:"conversation_id"`
	SenderType     string     `db:"sender_type" json:"sender_type"`
	Content        string     `db:"content" json:"content"`
	Timestamp      time.Time  `db:"timestamp" json:"timestamp"`
	SentimentScore *float64   `db:"sentiment_score" json:"sentiment_score"`
	SentimentLabel *string    `db:"sentiment_label" json:"sentiment_label"`
}

// ListItem is one row of the conversation inbox listing.
type ListItem struct {
	Phone              string     `db:"phone" json:"phone"`
	PatientName        string     `db:"patient_name" json:"patient_name"`
	Email              *string    `db:"email" json:"email,omitempty"`
	ConversationID     uuid.UUID  `db:"conversation_id" json:"conversation_id"`
	TotalMessages      int        `db:"total_messages" json:"total_messages"`
	LastMessageTime    *time.Time `db:"last_message_time" json:"last_message_time"`
	LastMessageContent *string    `db:"last_message_content" json:"last_message_content"`
	Source             *string    `db:"conversation_source" json:"conversation_source"`
}

// Thread is a conversation together with its full message history.
type Thread struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []*Message    `json:"messages"`
}

// Counts holds the inbox totals used by the dashboard metric tiles.
type Counts struct {
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
}
