package service

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"chat_backend/internal/domain"
)

// UserDirectory resolves user ids to public summaries, caching recent hits.
type UserDirectory struct {
	users domain.UserRepository
	cache *lru.Cache
}

func NewUserDirectory(users domain.UserRepository, size int) (*UserDirectory, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create user cache: %w", err)
	}
	return &UserDirectory{users: users, cache: cache}, nil
}

// Summary returns the summary of id or domain.ErrNotFound.
func (d *UserDirectory) Summary(ctx context.Context, id string) (domain.UserSummary, error) {
	if v, ok := d.cache.Get(id); ok {
		return v.(domain.UserSummary), nil
	}
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		return domain.UserSummary{}, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return domain.UserSummary{}, domain.ErrNotFound
	}
	s := u.Summary()
	d.cache.Add(id, s)
	return s, nil
}

// Remember stores the summary of a user that was just loaded or changed.
func (d *UserDirectory) Remember(u *domain.User) {
	d.cache.Add(u.ID, u.Summary())
}

func (d *UserDirectory) Forget(id string) {
	d.cache.Remove(id)
}

// Summaries resolves ids in order, skipping users that no longer exist.
func (d *UserDirectory) Summaries(ctx context.Context, ids []string) ([]domain.UserSummary, error) {
	out := make([]domain.UserSummary, 0, len(ids))
	for _, id := range ids {
		s, err := d.Summary(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
