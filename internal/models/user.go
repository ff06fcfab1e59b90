package models

import "strings"

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// RoleSet is the set of role tags attached to a caller.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// ParseRoles builds a RoleSet from raw role values. A value may itself
// be a comma-separated collection; blanks are ignored.
func ParseRoles(values ...string) RoleSet {
	set := make(RoleSet)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			role := strings.ToLower(strings.TrimSpace(part))
			if role != "" {
				set[Role(role)] = struct{}{}
			}
		}
	}
	return set
}

func (s RoleSet) Contains(role Role) bool {
	_, ok := s[role]
	return ok
}

// UserContext identifies the resolved caller of an operation.
type UserContext struct {
	UserID string  `json:"userId"`
	Roles  RoleSet `json:"roles"`
}

func (u UserContext) IsTeacher() bool {
	return u.Roles.Contains(RoleTeacher)
}

func (u UserContext) IsStudent() bool {
	return u.Roles.Contains(RoleStudent)
}
