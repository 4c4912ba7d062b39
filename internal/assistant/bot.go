package assistant

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chat_backend/internal/domain"
	"chat_backend/internal/security"
)

const (
	botBio   = "🤖 Hi! I'm Mizo, your AI assistant. Ask me anything and I'll help you out!"
	botImage = "https://api.dicebear.com/7.x/bottts/svg?seed=mizo&backgroundColor=e94560"
)

// EnsureBot returns the bot account named username, creating it on first
// start. The account gets an unguessable password and cannot log in.
func EnsureBot(ctx context.Context, users domain.UserRepository, hasher *security.PasswordHasher, username string) (*domain.User, error) {
	existing, err := users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get bot: %w", err)
	}
	if existing != nil {
		if !existing.IsBot {
			return nil, fmt.Errorf("%w: username %q belongs to a regular account", domain.ErrConflict, username)
		}
		return existing, nil
	}

	hashed, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("hash bot password: %w", err)
	}
	bot := &domain.User{
		ID:             uuid.NewString(),
		Username:       username,
		HashedPassword: hashed,
		Bio:            botBio,
		ImageURL:       botImage,
		IsBot:          true,
	}
	if err := users.Create(ctx, bot); err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return bot, nil
}
