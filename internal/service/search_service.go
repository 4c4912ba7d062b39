package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"chat_backend/internal/domain"
)

const searchLimit = 10

type SearchService struct {
	users  domain.UserRepository
	groups domain.GroupRepository
}

func NewSearchService(users domain.UserRepository, groups domain.GroupRepository) *SearchService {
	return &SearchService{users: users, groups: groups}
}

type SearchResult struct {
	Users  []*domain.User  `json:"users"`
	Groups []*domain.Group `json:"groups"`
}

// Search matches users by username or email and groups by name or
// description. The caller never appears in the user results.
func (s *SearchService) Search(ctx context.Context, callerID, query string) (*SearchResult, error) {
	res := &SearchResult{Users: []*domain.User{}, Groups: []*domain.Group{}}
	query = strings.TrimSpace(query)
	if query == "" {
		return res, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := s.users.Search(gctx, query, callerID, searchLimit)
		if err != nil {
			return fmt.Errorf("search users: %w", err)
		}
		if users != nil {
			res.Users = users
		}
		return nil
	})
	g.Go(func() error {
		groups, err := s.groups.Search(gctx, query, searchLimit)
		if err != nil {
			return fmt.Errorf("search groups: %w", err)
		}
		if groups != nil {
			res.Groups = groups
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}
