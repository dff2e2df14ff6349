package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/core"
	"github.com/vovakirdan/chatline-server/internal/proto"
	"github.com/vovakirdan/chatline-server/internal/store"
)

// UserHandlers serves the sidebar user list.
type UserHandlers struct {
	users    store.UserStore
	router   *core.Router
	registry *core.Registry
	log      *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(users store.UserStore, router *core.Router, registry *core.Registry, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		users:    users,
		router:   router,
		registry: registry,
		log:      logger,
	}
}

// UsersResponse lists other users with unseen counts and who is online.
type UsersResponse struct {
	Success        bool             `json:"success"`
	Users          []proto.User     `json:"users"`
	UnseenMessages map[string]int64 `json:"unseenMessages"`
	OnlineUsers    []string         `json:"onlineUsers"`
}

// ListUsers returns every other user.
// GET /api/message/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	uid := currentUserID(c)
	ctx := c.Request.Context()

	users, err := h.users.ListUsersExcept(ctx, uid)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to list users")
		c.JSON(http.StatusServiceUnavailable, errorBody(core.ErrStorageUnavailable.Error()))
		return
	}

	unseen, err := h.router.FetchUnseenSummary(ctx, uid)
	if err != nil {
		writeCoreError(c, err, h.log)
		return
	}

	response := make([]proto.User, 0, len(users))
	for _, u := range users {
		response = append(response, userToProto(u))
	}

	c.JSON(http.StatusOK, UsersResponse{
		Success:        true,
		Users:          response,
		UnseenMessages: unseen,
		OnlineUsers:    h.registry.Snapshot(),
	})
}
