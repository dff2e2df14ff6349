package core

import (
	"slices"

	"github.com/rs/zerolog"
)

// Broadcaster pushes the online set to every live handle.
type Broadcaster struct {
	logger *zerolog.Logger
}

var _ PresenceNotifier = (*Broadcaster)(nil)

// NewBroadcaster creates a presence broadcaster.
func NewBroadcaster(logger *zerolog.Logger) *Broadcaster {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broadcaster{logger: logger}
}

// PresenceChanged sends an EventOnlineUsers to each handle. A failed push is
// logged and skipped.
func (b *Broadcaster) PresenceChanged(online []string, handles []Handle) {
	for _, h := range handles {
		ev := &Event{Kind: EventOnlineUsers, Online: slices.Clone(online)}
		if err := h.Push(ev); err != nil {
			b.logger.Warn().Err(err).Str("user_id", h.UserID()).Msg("presence push failed")
		}
	}
	b.logger.Debug().Int("online", len(online)).Msg("presence broadcast")
}
