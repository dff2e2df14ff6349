package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/core"
	"github.com/vovakirdan/chatline-server/internal/proto"
)

// MessageHandlers provides the conversation endpoints under /api/message.
type MessageHandlers struct {
	router *core.Router
	log    *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(router *core.Router, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{router: router, log: logger}
}

// SendRequest is the body of a send. Exactly one of Text or Image is expected.
type SendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// SendResponse returns the stored message.
type SendResponse struct {
	Success    bool          `json:"success"`
	NewMessage proto.Message `json:"newMessage"`
}

// ConversationResponse lists a conversation oldest first.
type ConversationResponse struct {
	Success  bool            `json:"success"`
	Messages []proto.Message `json:"messages"`
}

// SuccessResponse is a bare acknowledgement.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OpenConversation marks the peer's messages seen and returns the conversation.
// GET /api/message/:id
func (h *MessageHandlers) OpenConversation(c *gin.Context) {
	messages, err := h.router.OpenConversation(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		writeCoreError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, ConversationResponse{Success: true, Messages: messagesToProto(messages)})
}

// Send stores a message to the user in the path and delivers it live if possible.
// POST /api/message/send/:id
func (h *MessageHandlers) Send(c *gin.Context) {
	var req SendRequest
	if !bindJSON(c, &req, h.log) {
		return
	}

	msg, err := h.router.Send(c.Request.Context(), currentUserID(c), c.Param("id"), core.Payload{
		Text:  req.Text,
		Image: req.Image,
	})
	if err != nil {
		writeCoreError(c, err, h.log)
		return
	}
	c.JSON(http.StatusCreated, SendResponse{Success: true, NewMessage: messageToProto(msg)})
}

// MarkSeen acknowledges a received message.
// PUT /api/message/mark/:id
func (h *MessageHandlers) MarkSeen(c *gin.Context) {
	if err := h.router.MarkSeen(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		writeCoreError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Message marked as seen"})
}
