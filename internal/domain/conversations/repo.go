package conversations

import "context"

// Repository reads the conversation inbox. All queries join patients,
// conversations and messages; nothing here mutates message content.
type Repository interface {
	GetByPhone(ctx context.Context, phone string) (*Conversation, error)
	MessagesByPhone(ctx context.Context, phone string) ([]*Message, error)
	List(ctx context.Context, limit, offset int) ([]*ListItem, error)
	Search(ctx context.Context, term string, limit, offset int) ([]*ListItem, error)
	Counts(ctx context.Context) (*Counts, error)
}
