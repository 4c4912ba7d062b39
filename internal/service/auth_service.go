package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat_backend/internal/domain"
	"chat_backend/internal/security"
)

// AuthService handles registration, login, and logout.
type AuthService struct {
	users  domain.UserRepository
	tokens *security.TokenService
	hash   *security.PasswordHasher

	friends       domain.FriendRepository
	defaultFriend string
}

func NewAuthService(users domain.UserRepository, tokens *security.TokenService, hash *security.PasswordHasher) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hash:   hash,
	}
}

// WithDefaultFriend makes every new account start out befriended with
// friendID, typically the assistant bot.
func (s *AuthService) WithDefaultFriend(friends domain.FriendRepository, friendID string) *AuthService {
	s.friends = friends
	s.defaultFriend = friendID
	return s
}

type RegisterInput struct {
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Email    *string `json:"email" validate:"omitempty,email,max=100"`
	Password string  `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

// Register creates the account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*TokenResponse, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Email != nil {
		trimmed := strings.TrimSpace(*in.Email)
		if trimmed == "" {
			in.Email = nil
		} else {
			in.Email = &trimmed
		}
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	// Check username uniqueness
	if existing, err := s.users.GetByUsername(ctx, in.Username); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("%w: username already registered", domain.ErrConflict)
	}

	// Check email uniqueness (if provided)
	if in.Email != nil {
		if existing, err := s.users.GetByEmail(ctx, *in.Email); err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		} else if existing != nil {
			return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:             uuid.NewString(),
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hashed,
		IsOnline:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if s.friends != nil && s.defaultFriend != "" {
		if err := s.friends.AddFriendship(ctx, user.ID, s.defaultFriend); err != nil {
			return nil, fmt.Errorf("add default friend: %w", err)
		}
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || user.IsBot {
		return nil, fmt.Errorf("%w: incorrect username or password", domain.ErrUnauthorized)
	}

	if err := s.hash.Verify(in.Password, user.HashedPassword); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, fmt.Errorf("%w: incorrect username or password", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if err := s.users.SetOnlineStatus(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("set online: %w", err)
	}
	user.IsOnline = true
	user.LastSeen = time.Now().UTC()
	return s.issue(user)
}

func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.users.SetOnlineStatus(ctx, userID, false)
}

// Me returns the user behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.tokens.Subject(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthorized)
	}
	return u, nil
}

func (s *AuthService) issue(user *domain.User) (*TokenResponse, error) {
	token, err := s.tokens.CreateForUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	}, nil
}
