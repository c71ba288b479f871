package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is an ordered privilege level
type Role int

const (
	RoleInvited Role = iota
	RoleContributor
	RoleAdmin
)

// AtLeast reports whether r grants the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

func (r Role) String() string {
	switch r {
	case RoleInvited:
		return "invited"
	case RoleContributor:
		return "contributor"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

func (r Role) Valid() bool {
	return r >= RoleInvited && r <= RoleAdmin
}

// ParseRole accepts the role name in any case.
func ParseRole(v string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "invited":
		return RoleInvited, true
	case "contributor":
		return RoleContributor, true
	case "admin":
		return RoleAdmin, true
	}
	return 0, false
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, ok := ParseRole(string(text))
	if !ok {
		return fmt.Errorf("unknown role %q", text)
	}
	*r = role
	return nil
}

type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Image         *string   `json:"image,omitempty"`
	Discriminator *string   `json:"discriminator,omitempty"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Profile holds the identity provider fields refreshed on every sign-in.
type Profile struct {
	ID            string
	Name          string
	Image         *string
	Discriminator *string
}
