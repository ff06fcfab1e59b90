package service

import (
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
)

func TestResolveUserFromHeaders(t *testing.T) {
	t.Parallel()

	auth := NewAuthService(zerolog.Nop())

	r := httptest.NewRequest("GET", "/api/v1/reviews", nil)
	r.Header.Set("X-User-Id", "s-1")
	r.Header.Set("X-User-Roles", "student,teacher")

	user, err := auth.ResolveUser(r)
	require.NoError(t, err)
	require.Equal(t, "s-1", user.UserID)
	require.True(t, user.Roles.Contains(models.RoleStudent))
	require.True(t, user.Roles.Contains(models.RoleTeacher))
}

func TestResolveUserMissingIdentity(t *testing.T) {
	t.Parallel()

	auth := NewAuthService(zerolog.Nop())

	var permErr *PermissionError

	r := httptest.NewRequest("GET", "/api/v1/reviews", nil)
	_, err := auth.ResolveUser(r)
	require.ErrorAs(t, err, &permErr)

	r = httptest.NewRequest("GET", "/api/v1/reviews", nil)
	r.Header.Set("X-User-Id", "s-1")
	_, err = auth.ResolveUser(r)
	require.ErrorAs(t, err, &permErr)
}
