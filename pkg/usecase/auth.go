package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
	"github.com/bssprx/data-platform-containers/pkg/utils/async"
	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

const DefaultRegistrationRole = "User"

// AuthUseCase maps load balancer identities onto users of a UserStore
type AuthUseCase struct {
	store        interfaces.UserStore
	issuer       interfaces.TokenIssuer
	registration bool
	role         string
	now          func() time.Time
}

var _ interfaces.AuthUseCase = &AuthUseCase{}

type AuthOption func(*AuthUseCase)

// WithRegistration controls auto-registration of unknown identities and the role they get
func WithRegistration(enabled bool, role string) AuthOption {
	return func(uc *AuthUseCase) {
		uc.registration = enabled
		if role != "" {
			uc.role = role
		}
	}
}

// WithAuthClock replaces time.Now
func WithAuthClock(now func() time.Time) AuthOption {
	return func(uc *AuthUseCase) {
		uc.now = now
	}
}

func NewAuth(store interfaces.UserStore, issuer interfaces.TokenIssuer, opts ...AuthOption) *AuthUseCase {
	uc := &AuthUseCase{
		store:        store,
		issuer:       issuer,
		registration: true,
		role:         DefaultRegistrationRole,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *AuthUseCase) rollback(ctx context.Context, reason string) {
	rb, ok := uc.store.(interfaces.Rollbacker)
	if !ok {
		return
	}
	if err := rb.Rollback(ctx); err != nil {
		logging.From(ctx).Warn("Failed to rollback user store session", "reason", reason, "error", err)
	}
}

func (uc *AuthUseCase) find(ctx context.Context, username, email string) (*model.User, error) {
	user, err := uc.store.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find user by username", goerr.V("username", username))
	}
	if user == nil && email != "" {
		user, err = uc.store.FindUserByEmail(ctx, email)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to find user by email", goerr.V("email", email))
		}
	}
	return user, nil
}

// reload re-queries a user that came back without an id
func (uc *AuthUseCase) reload(ctx context.Context, username, email string) (*model.User, error) {
	user, err := uc.find(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ID == "" {
		return nil, nil
	}
	return user, nil
}

// Authorize returns the user for info, registering it when allowed
func (uc *AuthUseCase) Authorize(ctx context.Context, info *model.UserInfo) (*model.User, error) {
	if info == nil || info.Username == "" {
		return nil, nil
	}
	logger := logging.From(ctx).With("username", info.Username)

	uc.rollback(ctx, "pre-find-user")
	user, err := uc.find(ctx, info.Username, info.Email)
	if err != nil {
		return nil, err
	}
	if user != nil && user.ID == "" {
		logger.Warn("User found without id; reloading")
		uc.rollback(ctx, "reload-missing-id")
		if user, err = uc.reload(ctx, info.Username, info.Email); err != nil {
			return nil, err
		}
	}
	if user != nil {
		uc.recordLogin(ctx, user)
		return user, nil
	}

	if !uc.registration {
		logger.Warn("User not found and auto-registration disabled")
		return nil, nil
	}

	role, err := uc.store.FindRole(ctx, uc.role)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find role", goerr.V("role", uc.role))
	}
	if role == nil {
		logger.Error("Default role not found; cannot auto-register user", "role", uc.role)
		return nil, nil
	}

	newUser := &model.User{
		ID:        uuid.NewString(),
		Username:  info.Username,
		Email:     registrationEmail(info),
		FirstName: firstNonEmpty(info.FirstName, model.LocalPart(info.Username), info.Username),
		LastName:  firstNonEmpty(info.LastName, "OIDC"),
		Roles:     []string{role.Name},
		Active:    true,
		CreatedAt: uc.now().UTC(),
	}

	logger.Info("Auto-registering user", "role", role.Name)
	if _, err := uc.store.AddUser(ctx, newUser); err != nil {
		if errors.Is(err, model.ErrUserExists) {
			logger.Warn("User already exists; reloading after race")
		} else {
			logger.Error("Unexpected error while adding user", "error", err)
		}
		uc.rollback(ctx, "add-user")
		user, err := uc.reload(ctx, info.Username, info.Email)
		if err != nil || user == nil {
			return nil, err
		}
		uc.recordLogin(ctx, user)
		return user, nil
	}

	user, err = uc.reload(ctx, info.Username, info.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		logger.Error("User created without id; refusing to mint token")
		return nil, nil
	}
	uc.recordLogin(ctx, user)
	return user, nil
}

func registrationEmail(info *model.UserInfo) string {
	switch {
	case info.Email != "":
		return info.Email
	case strings.Contains(info.Username, "@"):
		return info.Username
	default:
		return info.Username + "@local.invalid"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (uc *AuthUseCase) recordLogin(ctx context.Context, user *model.User) {
	id, at := user.ID, uc.now().UTC()
	async.Dispatch(ctx, "record-login", func(ctx context.Context) error {
		return uc.store.RecordLogin(ctx, id, at)
	})
}

// PasswordLogin checks local credentials against the stored bcrypt hash
func (uc *AuthUseCase) PasswordLogin(ctx context.Context, username, password string) (*model.User, error) {
	user, err := uc.store.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find user by username", goerr.V("username", username))
	}
	if user == nil || !user.Active || user.PasswordHash == "" {
		return nil, goerr.Wrap(model.ErrInvalidCredentials, "password login refused", goerr.V("username", username))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, goerr.Wrap(model.ErrInvalidCredentials, "password mismatch", goerr.V("username", username))
	}

	uc.recordLogin(ctx, user)
	return user, nil
}

// IssueToken mints a token for user. An empty token means none could be minted.
func (uc *AuthUseCase) IssueToken(ctx context.Context, user *model.User, ttl time.Duration) (string, error) {
	token, err := uc.issuer.Issue(ctx, user, ttl)
	if err != nil {
		return "", goerr.Wrap(err, "failed to issue token", goerr.V("user_id", user.ID))
	}
	return token, nil
}

// Bootstrap makes sure a local account with a password exists. An existing
// account is left untouched.
func (uc *AuthUseCase) Bootstrap(ctx context.Context, username, password, roleName string) error {
	existing, err := uc.store.FindUserByUsername(ctx, username)
	if err != nil {
		return goerr.Wrap(err, "failed to find user by username", goerr.V("username", username))
	}
	if existing != nil {
		return nil
	}

	role, err := uc.store.FindRole(ctx, roleName)
	if err != nil {
		return goerr.Wrap(err, "failed to find role", goerr.V("role", roleName))
	}
	if role == nil {
		return goerr.New("bootstrap role not found", goerr.V("role", roleName))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return goerr.Wrap(err, "failed to hash password")
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        registrationEmail(&model.UserInfo{Username: username}),
		FirstName:    firstNonEmpty(model.LocalPart(username), username),
		LastName:     "Local",
		Roles:        []string{role.Name},
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    uc.now().UTC(),
	}
	if _, err := uc.store.AddUser(ctx, user); err != nil && !errors.Is(err, model.ErrUserExists) {
		return err
	}

	logging.From(ctx).Info("Bootstrapped local user", "username", username, "role", role.Name)
	return nil
}
