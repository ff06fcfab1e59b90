package service

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
)

const (
	headerUserID    = "X-User-Id"
	headerUserRoles = "X-User-Roles"
)

// AuthService resolves an inbound request into the caller's identity.
// The gateway terminates authentication and forwards identity headers;
// this adapter only translates them into a UserContext.
type AuthService interface {
	ResolveUser(r *http.Request) (models.UserContext, error)
}

type authService struct {
	logger zerolog.Logger
}

func NewAuthService(logger zerolog.Logger) AuthService {
	return &authService{logger: logger}
}

func (s *authService) ResolveUser(r *http.Request) (models.UserContext, error) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		return models.UserContext{}, newPermissionError("caller identity is missing")
	}

	roles := models.ParseRoles(r.Header.Values(headerUserRoles)...)
	if len(roles) == 0 {
		return models.UserContext{}, newPermissionError("caller has no roles")
	}

	return models.UserContext{UserID: userID, Roles: roles}, nil
}
