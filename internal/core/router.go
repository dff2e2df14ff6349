package core

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/media"
	"github.com/vovakirdan/chatline-server/internal/store"
	"github.com/vovakirdan/chatline-server/internal/utils"
)

// Router persists messages and delivers them to live sessions.
type Router struct {
	users    store.UserStore
	messages store.MessageStore
	registry *Registry
	unseen   UnseenCounter
	now      func() time.Time
	logger   *zerolog.Logger

	// pairs serializes Send and OpenConversation for one (recipient, sender)
	// pair so the unseen count always matches the seen flags in the store.
	pairs [pairStripes]sync.Mutex
}

const pairStripes = 64

func (r *Router) pairLock(recipientID, senderID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(recipientID))
	h.Write([]byte{0})
	h.Write([]byte(senderID))
	return &r.pairs[h.Sum32()%pairStripes]
}

// NewRouter wires a router. unseen defaults to an in-memory counter.
func NewRouter(users store.UserStore, messages store.MessageStore, registry *Registry, unseen UnseenCounter, logger *zerolog.Logger) *Router {
	if unseen == nil {
		unseen = NewMemoryUnseen()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{
		users:    users,
		messages: messages,
		registry: registry,
		unseen:   unseen,
		now:      time.Now,
		logger:   logger,
	}
}

// Send stores a message from senderID to recipientID and pushes it to the
// recipient's live session. When the recipient is offline or the push fails
// the message is counted as unseen. A returned message is always persisted.
func (r *Router) Send(ctx context.Context, senderID, recipientID string, p Payload) (*Message, error) {
	text := strings.TrimSpace(p.Text)
	image := strings.TrimSpace(p.Image)
	switch {
	case text == "" && image == "":
		return nil, ErrEmptyMessage
	case text != "" && image != "":
		return nil, ErrInvalidPayload
	}
	if image != "" {
		img, err := media.ParseImage(image)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		image = img.DataURL
	}

	if _, err := r.users.GetUserByID(ctx, recipientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRecipient
		}
		return nil, storageError(err)
	}

	mu := r.pairLock(recipientID, senderID)
	mu.Lock()
	defer mu.Unlock()

	rec := &store.Message{
		ID:          utils.NewID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		Image:       image,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.messages.CreateMessage(ctx, rec); err != nil {
		return nil, storageError(err)
	}
	msg := messageFromStore(rec)

	log := r.logger.With().
		Str("message_id", msg.ID).
		Str("user_id", senderID).
		Str("peer_id", recipientID).
		Logger()

	found, err := r.registry.Deliver(recipientID, &Event{Kind: EventNewMessage, Message: msg})
	switch {
	case found && err == nil:
		log.Debug().Msg("message delivered")
		return msg, nil
	case found:
		log.Warn().Err(err).Msg("live delivery failed")
	default:
		log.Debug().Msg("recipient offline")
	}

	if _, err := r.unseen.Increment(ctx, recipientID, senderID); err != nil {
		log.Error().Err(err).Msg("unseen increment failed")
	}
	return msg, nil
}

// MarkSeen marks messageID as seen on behalf of viewerID, who must be its
// recipient. Marking an already seen message is a no-op.
func (r *Router) MarkSeen(ctx context.Context, messageID, viewerID string) error {
	msg, err := r.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMessageNotFound
		}
		return storageError(err)
	}
	if msg.RecipientID != viewerID {
		return ErrUnauthorized
	}
	if msg.Seen {
		return nil
	}
	if _, err := r.messages.MarkMessageSeen(ctx, messageID); err != nil {
		return storageError(err)
	}
	return nil
}

// FetchConversation returns the messages between a and b, oldest first.
func (r *Router) FetchConversation(ctx context.Context, a, b string) ([]*Message, error) {
	recs, err := r.messages.ListConversation(ctx, a, b)
	if err != nil {
		return nil, storageError(err)
	}
	out := make([]*Message, 0, len(recs))
	for _, rec := range recs {
		out = append(out, messageFromStore(rec))
	}
	return out, nil
}

// OpenConversation marks everything peerID sent to viewerID as seen, clears
// the unseen count for the pair and returns the conversation.
func (r *Router) OpenConversation(ctx context.Context, viewerID, peerID string) ([]*Message, error) {
	mu := r.pairLock(viewerID, peerID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := r.messages.MarkConversationSeen(ctx, peerID, viewerID); err != nil {
		return nil, storageError(err)
	}
	if err := r.unseen.Reset(ctx, viewerID, peerID); err != nil {
		r.logger.Error().Err(err).Str("user_id", viewerID).Str("peer_id", peerID).Msg("unseen reset failed")
	}
	return r.FetchConversation(ctx, viewerID, peerID)
}

// FetchUnseenSummary returns sender -> unseen count for userID.
func (r *Router) FetchUnseenSummary(ctx context.Context, userID string) (map[string]int64, error) {
	summary, err := r.unseen.Summary(ctx, userID)
	if err != nil {
		return nil, storageError(err)
	}
	return summary, nil
}
