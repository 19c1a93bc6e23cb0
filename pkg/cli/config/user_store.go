package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/infra/firestore"
	"github.com/bssprx/data-platform-containers/pkg/infra/memory"
)

const (
	UserStoreMemory    = "memory"
	UserStoreFirestore = "firestore"
)

// UserStore selects and configures the auth user backend
type UserStore struct {
	Backend          string
	ProjectID        string
	DatabaseID       string
	CollectionPrefix string
	CredentialsFile  string
}

func (c *UserStore) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "user-store",
			Usage:       "User store backend (memory, firestore)",
			Value:       UserStoreMemory,
			Destination: &c.Backend,
			Sources:     cli.EnvVars("DPC_USER_STORE"),
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project of the Firestore database",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("DPC_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database id",
			Value:       "(default)",
			Destination: &c.DatabaseID,
			Sources:     cli.EnvVars("DPC_FIRESTORE_DATABASE_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of the users and roles collections",
			Destination: &c.CollectionPrefix,
			Sources:     cli.EnvVars("DPC_FIRESTORE_COLLECTION_PREFIX"),
		},
		&cli.StringFlag{
			Name:        "firestore-credentials",
			Usage:       "Service account key file (default: application default credentials)",
			Destination: &c.CredentialsFile,
			Sources:     cli.EnvVars("DPC_FIRESTORE_CREDENTIALS"),
		},
	}
}

// New opens the configured store. Roles are seeded so registration can
// find its role. The closer must be called.
func (c *UserStore) New(ctx context.Context, roles ...string) (interfaces.UserStore, func(), error) {
	switch c.Backend {
	case UserStoreMemory, "":
		return memory.New(roles...), func() {}, nil

	case UserStoreFirestore:
		var clientOpts []option.ClientOption
		if c.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(c.CredentialsFile))
		}
		store, err := firestore.New(ctx, c.ProjectID, c.DatabaseID, clientOpts,
			firestore.WithCollectionPrefix(c.CollectionPrefix))
		if err != nil {
			return nil, nil, err
		}
		if len(roles) == 0 {
			roles = memory.DefaultRoles
		}
		if err := store.EnsureRoles(ctx, roles...); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, goerr.New("unknown user store backend", goerr.V("backend", c.Backend))
	}
}
