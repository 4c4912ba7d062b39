package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chat_backend/internal/domain"
)

// UserService provides user-related operations.
type UserService struct {
	users domain.UserRepository
	dir   *UserDirectory
	log   zerolog.Logger
}

func NewUserService(users domain.UserRepository, dir *UserDirectory, log zerolog.Logger) *UserService {
	return &UserService{users: users, dir: dir, log: log}
}

func (s *UserService) GetProfile(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

// UpdateProfileInput carries the editable profile fields. Nil fields are left
// unchanged.
type UpdateProfileInput struct {
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
	Email    *string `json:"email" validate:"omitempty,email,max=100"`
	ImageURL *string `json:"image_url"`
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*domain.User, error) {
	if in.Email != nil {
		trimmed := strings.TrimSpace(*in.Email)
		in.Email = &trimmed
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	u, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		if *in.Email == "" {
			u.Email = nil
		} else if u.Email == nil || *u.Email != *in.Email {
			existing, err := s.users.GetByEmail(ctx, *in.Email)
			if err != nil {
				return nil, fmt.Errorf("check email: %w", err)
			}
			if existing != nil && existing.ID != id {
				return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
			}
			u.Email = in.Email
		}
	}
	if in.Bio != nil {
		u.Bio = *in.Bio
	}
	if in.ImageURL != nil {
		u.ImageURL = *in.ImageURL
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.dir.Remember(u)
	return u, nil
}

// Summaries maps online identities to public user summaries.
func (s *UserService) Summaries(ctx context.Context, ids []string) ([]domain.UserSummary, error) {
	return s.dir.Summaries(ctx, ids)
}

// RecordPresence persists an online/offline transition reported by the hub.
// It runs off the hub goroutine.
func (s *UserService) RecordPresence(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.users.SetOnlineStatus(ctx, userID, online); err != nil {
		s.log.Warn().Err(err).Str("user", userID).Bool("online", online).Msg("persist presence failed")
	}
}
