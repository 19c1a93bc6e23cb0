// Package firestore stores auth users and roles in Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

const (
	usersCollection = "users"
	rolesCollection = "roles"
)

type UserStore struct {
	client *firestore.Client
	prefix string
}

var _ interfaces.UserStore = &UserStore{}

type Option func(*UserStore)

// WithCollectionPrefix namespaces the collections, e.g. per environment or test run
func WithCollectionPrefix(prefix string) Option {
	return func(s *UserStore) {
		s.prefix = prefix
	}
}

// New connects to the given Firestore database
func New(ctx context.Context, projectID, databaseID string, clientOpts []option.ClientOption, opts ...Option) (*UserStore, error) {
	if projectID == "" {
		return nil, goerr.New("firestore project id is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	s := &UserStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *UserStore) Close() error {
	return s.client.Close()
}

func (s *UserStore) users() *firestore.CollectionRef {
	return s.client.Collection(s.prefix + usersCollection)
}

func (s *UserStore) roles() *firestore.CollectionRef {
	return s.client.Collection(s.prefix + rolesCollection)
}

func (s *UserStore) findOne(ctx context.Context, field, value string) (*model.User, error) {
	iter := s.users().Where(field, "==", value).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query users", goerr.V(field, value))
	}

	var user model.User
	if err := doc.DataTo(&user); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user", goerr.V("doc_id", doc.Ref.ID))
	}
	if user.ID == "" {
		user.ID = doc.Ref.ID
	}
	return &user, nil
}

func (s *UserStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findOne(ctx, "username", username)
}

func (s *UserStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, nil
	}
	return s.findOne(ctx, "email", model.NormalizeEmail(email))
}

func (s *UserStore) FindRole(ctx context.Context, name string) (*model.Role, error) {
	doc, err := s.roles().Doc(name).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get role", goerr.V("role", name))
	}

	var role model.Role
	if err := doc.DataTo(&role); err != nil {
		return nil, goerr.Wrap(err, "failed to decode role", goerr.V("role", name))
	}
	if role.Name == "" {
		role.Name = doc.Ref.ID
	}
	return &role, nil
}

// EnsureRoles creates missing role documents
func (s *UserStore) EnsureRoles(ctx context.Context, names ...string) error {
	for _, name := range names {
		_, err := s.roles().Doc(name).Create(ctx, &model.Role{Name: name})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return goerr.Wrap(err, "failed to create role", goerr.V("role", name))
		}
	}
	return nil
}

// AddUser checks username and email uniqueness and creates the user inside one transaction
func (s *UserStore) AddUser(ctx context.Context, user *model.User) (*model.User, error) {
	if user.ID == "" {
		return nil, goerr.New("user id is required", goerr.V("username", user.Username))
	}
	normalized := *user
	normalized.Email = model.NormalizeEmail(user.Email)
	user = &normalized

	exists := func(tx *firestore.Transaction, field, value string) (bool, error) {
		docs, err := tx.Documents(s.users().Where(field, "==", value).Limit(1)).GetAll()
		if err != nil {
			return false, goerr.Wrap(err, "failed to query users", goerr.V(field, value))
		}
		return len(docs) > 0, nil
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		found, err := exists(tx, "username", user.Username)
		if err != nil {
			return err
		}
		if !found && user.Email != "" {
			if found, err = exists(tx, "email", user.Email); err != nil {
				return err
			}
		}
		if found {
			return goerr.Wrap(model.ErrUserExists, "duplicated user",
				goerr.V("username", user.Username),
				goerr.V("email", user.Email))
		}
		return tx.Create(s.users().Doc(user.ID), user)
	})

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, model.ErrUserExists):
		return nil, err
	case status.Code(err) == codes.AlreadyExists:
		return nil, goerr.Wrap(model.ErrUserExists, "user id already taken", goerr.V("user_id", user.ID))
	default:
		return nil, goerr.Wrap(err, "failed to add user", goerr.V("username", user.Username))
	}
}

func (s *UserStore) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.users().Doc(userID).Update(ctx, []firestore.Update{
		{Path: "last_login", Value: at},
		{Path: "login_count", Value: firestore.Increment(1)},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to record login", goerr.V("user_id", userID))
	}
	return nil
}
