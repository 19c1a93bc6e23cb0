package interfaces

import (
	"context"
	"time"

	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

// UserStore is the capability the auth service needs from the host user database.
// Find methods return (nil, nil) when nothing matches.
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindRole(ctx context.Context, name string) (*model.Role, error)

	// AddUser persists a new user. It returns an error wrapping
	// model.ErrUserExists when the username or email is taken.
	AddUser(ctx context.Context, user *model.User) (*model.User, error)

	// RecordLogin bumps the login counter and last-login time
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}

// Rollbacker is implemented by stores holding a transactional session that
// may be left in a failed state.
type Rollbacker interface {
	Rollback(ctx context.Context) error
}

// TokenIssuer mints session tokens for authenticated users
type TokenIssuer interface {
	Issue(ctx context.Context, user *model.User, ttl time.Duration) (string, error)
}
