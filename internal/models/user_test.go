package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRolesScalarAndCollection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		values    []string
		isTeacher bool
		isStudent bool
	}{
		{"single role", []string{"teacher"}, true, false},
		{"comma separated", []string{"student,teacher"}, true, true},
		{"repeated header", []string{"student", "teacher"}, true, true},
		{"case and spacing", []string{" Teacher , STUDENT "}, true, true},
		{"empty", []string{""}, false, false},
		{"unknown role only", []string{"admin"}, false, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			user := UserContext{UserID: "u-1", Roles: ParseRoles(tt.values...)}
			require.Equal(t, tt.isTeacher, user.IsTeacher())
			require.Equal(t, tt.isStudent, user.IsStudent())
		})
	}
}

func TestRoleSetMembership(t *testing.T) {
	t.Parallel()

	set := NewRoleSet(RoleStudent)
	require.True(t, set.Contains(RoleStudent))
	require.False(t, set.Contains(RoleTeacher))

	require.False(t, RoleSet(nil).Contains(RoleTeacher))
}
