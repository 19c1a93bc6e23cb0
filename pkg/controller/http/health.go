package http

import (
	"net/http"

	"github.com/bssprx/data-platform-containers/pkg/domain/model"
	"github.com/bssprx/data-platform-containers/pkg/domain/types"
)

func healthHandler(userStore string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, &model.HealthStatus{
			Status:    "healthy",
			Service:   types.AppName + "-auth",
			Version:   types.Version,
			UserStore: userStore,
		})
	}
}
