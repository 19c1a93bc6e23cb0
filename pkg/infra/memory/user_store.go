// Package memory keeps users in process memory. It backs local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

// DefaultRoles are seeded when New gets no roles
var DefaultRoles = []string{"Admin", "Op", "User", "Viewer", "Public"}

type UserStore struct {
	mu    sync.RWMutex
	users map[string]*model.User
	roles map[string]*model.Role
}

var _ interfaces.UserStore = &UserStore{}

// New creates a store holding the given roles
func New(roles ...string) *UserStore {
	if len(roles) == 0 {
		roles = DefaultRoles
	}
	s := &UserStore{
		users: make(map[string]*model.User),
		roles: make(map[string]*model.Role, len(roles)),
	}
	for _, name := range roles {
		s.roles[name] = &model.Role{Name: name}
	}
	return s
}

func clone(u *model.User) *model.User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	return &c
}

func (s *UserStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (s *UserStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = model.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (s *UserStore) FindRole(ctx context.Context, name string) (*model.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.roles[name]; ok {
		return &model.Role{Name: r.Name}, nil
	}
	return nil, nil
}

func (s *UserStore) AddUser(ctx context.Context, user *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := clone(user)
	added.Email = model.NormalizeEmail(added.Email)

	for _, u := range s.users {
		if u.Username == added.Username || (added.Email != "" && u.Email == added.Email) {
			return nil, goerr.Wrap(model.ErrUserExists, "duplicated user",
				goerr.V("username", user.Username),
				goerr.V("email", user.Email))
		}
	}

	if added.ID == "" {
		added.ID = uuid.NewString()
	}
	s.users[added.ID] = added
	return clone(added), nil
}

func (s *UserStore) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return goerr.New("user not found", goerr.V("user_id", userID))
	}
	u.LastLogin = at
	u.LoginCount++
	return nil
}
