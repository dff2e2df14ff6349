package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vovakirdan/chatline-server/internal/core"
	"github.com/vovakirdan/chatline-server/internal/media"
	"github.com/vovakirdan/chatline-server/internal/store"
	"github.com/vovakirdan/chatline-server/internal/utils"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when signing up with a registered email.
	ErrUserExists = errors.New("account already exists")
	// ErrMissingFields is returned when a required field is blank.
	ErrMissingFields = errors.New("all fields are required")
	// ErrInvalidEmail is returned when the email is malformed.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("password must be at least 6 characters")
	// ErrInvalidImage is returned when a profile picture is not a supported image.
	ErrInvalidImage = errors.New("invalid profile picture")
)

const minPasswordLen = 6

// SignupInput carries the fields of a new account.
type SignupInput struct {
	FullName string
	Email    string
	Password string
	Bio      string
}

// ProfileInput carries profile changes. Nil fields are left unchanged.
type ProfileInput struct {
	FullName   *string
	Bio        *string
	ProfilePic *string
}

// Service provides account and token operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
	validate  *validator.Validate
	now       func() time.Time
}

var _ core.IdentityVerifier = (*Service)(nil)

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// Signup creates an account and returns it with an access token.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*store.User, string, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	in.Bio = strings.TrimSpace(in.Bio)
	if in.FullName == "" || in.Email == "" || in.Password == "" || in.Bio == "" {
		return nil, "", ErrMissingFields
	}
	if err := s.validate.Var(in.Email, "email"); err != nil {
		return nil, "", ErrInvalidEmail
	}
	if len(in.Password) < minPasswordLen {
		return nil, "", ErrInvalidPassword
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}

	user := &store.User{
		ID:           utils.NewID(),
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		Bio:          in.Bio,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, "", ErrUserExists
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.accessToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login validates credentials and returns the user with an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*store.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	if !ComparePassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.accessToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUser returns the account for id.
func (s *Service) GetUser(ctx context.Context, id string) (*store.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// UpdateProfile applies in to the account. A profile picture must be a
// supported data URL image.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*store.User, error) {
	var upd store.ProfileUpdate
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return nil, ErrMissingFields
		}
		upd.FullName = &name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		upd.Bio = &bio
	}
	if in.ProfilePic != nil && strings.TrimSpace(*in.ProfilePic) != "" {
		img, err := media.ParseImage(*in.ProfilePic)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		upd.ProfilePic = &img.DataURL
	}

	user, err := s.store.UpdateProfile(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// IssueConnectToken returns a short-lived token for opening a real-time session.
func (s *Service) IssueConnectToken(userID string) (string, time.Time, error) {
	ttl := s.jwtConfig.ConnectTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return GenerateToken(s.jwtConfig, userID, PurposeConnect, ttl)
}

// ValidateAccessToken validates a bearer token and returns the claims.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString, PurposeAccess)
}

// VerifyConnect validates a connect token and checks its user still exists.
func (s *Service) VerifyConnect(ctx context.Context, credential string) (string, error) {
	claims, err := ValidateToken(s.jwtConfig, credential, PurposeConnect)
	if err != nil {
		return "", err
	}
	if _, err := s.store.GetUserByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", core.ErrUnknownUser
		}
		return "", fmt.Errorf("get user: %w", err)
	}
	return claims.UserID, nil
}

func (s *Service) accessToken(userID string) (string, error) {
	token, _, err := GenerateToken(s.jwtConfig, userID, PurposeAccess, s.jwtConfig.TTL)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
