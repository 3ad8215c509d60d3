package conversations

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrPhoneRequired is returned when a thread lookup is attempted without a
// phone number.
var ErrPhoneRequired = errors.New("phone is required")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetThread returns the conversation for a phone number with its messages
// in chronological order. A phone with no conversation yields an empty
// thread rather than an error, matching the inbox UI's expectations.
func (s *Service) GetThread(ctx context.Context, phone string) (*Thread, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, ErrPhoneRequired
	}
	conv, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &Thread{Messages: []*Message{}}, nil
		}
		return nil, err
	}
	msgs, err := s.repo.MessagesByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return &Thread{Conversation: conv, Messages: msgs}, nil
}

// ListConversations returns one inbox page. When a search term is given
// the page is restricted to conversations matching the patient's name,
// phone, email or any message content.
func (s *Service) ListConversations(ctx context.Context, term string, limit, offset int) ([]*ListItem, error) {
	var (
		items []*ListItem
		err   error
	)
	if strings.TrimSpace(term) != "" {
		items, err = s.repo.Search(ctx, term, limit, offset)
	} else {
		items, err = s.repo.List(ctx, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*ListItem{}
	}
	return items, nil
}

func (s *Service) Counts(ctx context.Context) (*Counts, error) {
	return s.repo.Counts(ctx)
}
