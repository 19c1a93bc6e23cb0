package interfaces

import (
	"context"
	"time"

	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

// AuthUseCase maps load balancer identities to users and mints tokens
type AuthUseCase interface {
	// Authorize returns the user for the identity, creating it when allowed.
	// A nil user without error means the identity is not authorized.
	Authorize(ctx context.Context, info *model.UserInfo) (*model.User, error)

	// PasswordLogin verifies local credentials
	PasswordLogin(ctx context.Context, username, password string) (*model.User, error)

	// IssueToken mints a token with the given lifetime
	IssueToken(ctx context.Context, user *model.User, ttl time.Duration) (string, error)
}
