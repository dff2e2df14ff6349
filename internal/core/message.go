package core

import (
	"time"

	"github.com/vovakirdan/chatline-server/internal/store"
)

// Message is the domain model for a direct message.
type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Text        string
	Image       string
	Seen        bool
	CreatedAt   time.Time
}

// Payload is the content a sender submits. Exactly one field must be set.
type Payload struct {
	Text  string
	Image string // base64 data URL
}

func messageFromStore(m *store.Message) *Message {
	return &Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		Image:       m.Image,
		Seen:        m.Seen,
		CreatedAt:   m.CreatedAt,
	}
}
