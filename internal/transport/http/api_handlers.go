package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/auth"
	"github.com/vovakirdan/chatline-server/internal/proto"
	"github.com/vovakirdan/chatline-server/internal/store"
)

// APIHandlers provides the account endpoints under /api/auth.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// SignupRequest represents the signup request body.
type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest carries optional profile changes.
type UpdateProfileRequest struct {
	FullName   *string `json:"fullName"`
	Bio        *string `json:"bio"`
	ProfilePic *string `json:"profilePic"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Success  bool       `json:"success"`
	UserData proto.User `json:"userData"`
	Token    string     `json:"token"`
	Message  string     `json:"message"`
}

// UserEnvelope wraps a single user.
type UserEnvelope struct {
	Success bool       `json:"success"`
	User    proto.User `json:"user"`
	Message string     `json:"message,omitempty"`
}

// ConnectTokenResponse carries a token for opening a WebSocket session.
type ConnectTokenResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Signup handles account creation.
// POST /api/auth/signup
func (h *APIHandlers) Signup(c *gin.Context) {
	var req SignupRequest
	if !bindJSON(c, &req, h.log) {
		return
	}

	user, token, err := h.authService.Signup(c.Request.Context(), auth.SignupInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Bio:      req.Bio,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields),
			errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, errorBody(err.Error()))
		default:
			h.log.Error().Err(err).Msg("failed to sign up user")
			c.JSON(http.StatusInternalServerError, errorBody("internal server error"))
		}
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("user signed up")
	c.JSON(http.StatusCreated, AuthResponse{
		Success:  true,
		UserData: userToProto(user),
		Token:    token,
		Message:  "Account created successfully",
	})
}

// Login handles user login.
// POST /api/auth/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req, h.log) {
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, errorBody("invalid credentials"))
			return
		}
		h.log.Error().Err(err).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, errorBody("internal server error"))
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{
		Success:  true,
		UserData: userToProto(user),
		Token:    token,
		Message:  "Login successful",
	})
}

// Check returns the authenticated user.
// GET /api/auth/check
func (h *APIHandlers) Check(c *gin.Context) {
	user, err := h.authService.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, errorBody("user not found"))
			return
		}
		h.log.Error().Err(err).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, errorBody("internal server error"))
		return
	}
	c.JSON(http.StatusOK, UserEnvelope{Success: true, User: userToProto(user)})
}

// UpdateProfile changes name, bio or profile picture.
// PUT /api/auth/update-profile
func (h *APIHandlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !bindJSON(c, &req, h.log) {
		return
	}

	uid := currentUserID(c)
	user, err := h.authService.UpdateProfile(c.Request.Context(), uid, auth.ProfileInput{
		FullName:   req.FullName,
		Bio:        req.Bio,
		ProfilePic: req.ProfilePic,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrInvalidImage):
			c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, errorBody("user not found"))
		default:
			h.log.Error().Err(err).Str("user_id", uid).Msg("failed to update profile")
			c.JSON(http.StatusInternalServerError, errorBody("internal server error"))
		}
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{Success: true, User: userToProto(user), Message: "Profile updated successfully"})
}

// ConnectToken issues a short-lived token for GET /ws.
// POST /api/auth/connect-token
func (h *APIHandlers) ConnectToken(c *gin.Context) {
	uid := currentUserID(c)
	token, expiresAt, err := h.authService.IssueConnectToken(uid)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to issue connect token")
		c.JSON(http.StatusInternalServerError, errorBody("internal server error"))
		return
	}
	c.JSON(http.StatusOK, ConnectTokenResponse{Success: true, Token: token, ExpiresAt: expiresAt})
}
