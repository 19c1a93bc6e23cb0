package config_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/bssprx/data-platform-containers/pkg/cli/config"
)

func TestAuth_Validate(t *testing.T) {
	valid := func() config.Auth {
		return config.Auth{
			JWTSecret:        "s3cr3t",
			JWTExpiration:    24 * time.Hour,
			JWTCLIExpiration: time.Hour,
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := valid()
		gt.NoError(t, cfg.Validate())
	})

	t.Run("secret required", func(t *testing.T) {
		cfg := valid()
		cfg.JWTSecret = ""
		gt.Error(t, cfg.Validate())
	})

	t.Run("non-positive lifetime", func(t *testing.T) {
		cfg := valid()
		cfg.JWTCLIExpiration = 0
		gt.Error(t, cfg.Validate())
	})

	t.Run("bootstrap needs both fields", func(t *testing.T) {
		cfg := valid()
		cfg.BootstrapUser = "admin"
		gt.Error(t, cfg.Validate())

		cfg.BootstrapPassword = "pw"
		gt.NoError(t, cfg.Validate())
	})
}

func TestAuth_NewIssuer(t *testing.T) {
	cfg := config.Auth{JWTSecret: "s3cr3t", JWTIssuer: "dpc-auth", JWTAudience: []string{"airflow"}}
	issuer, err := cfg.NewIssuer()
	gt.NoError(t, err)
	gt.Value(t, issuer).NotNil()
}

func TestUserStore_New(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := config.UserStore{Backend: config.UserStoreMemory}
		store, closer, err := cfg.New(t.Context())
		gt.NoError(t, err)
		defer closer()

		role, err := store.FindRole(t.Context(), "User")
		gt.NoError(t, err)
		gt.Value(t, role).NotNil()
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.UserStore{Backend: "ldap"}
		_, _, err := cfg.New(t.Context())
		gt.Error(t, err)
	})

	t.Run("firestore needs a project", func(t *testing.T) {
		cfg := config.UserStore{Backend: config.UserStoreFirestore}
		_, _, err := cfg.New(t.Context())
		gt.Error(t, err)
	})
}
