package users

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/scan-portal/internal/utils"
)

// Role is the user's role in the application, not a permission level.
type Role string

const (
	RoleUnset   Role = ""
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// The backend may serialise roles as its integer enum.
var numericRoles = map[int]Role{
	0: RolePatient,
	1: RoleDoctor,
}

// ParseRole maps a role name to a Role. Unknown names map to RoleUnset.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r
	default:
		return RoleUnset
	}
}

func (r *Role) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = RoleUnset
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if n, err := strconv.Atoi(s); err == nil {
			*r = numericRoles[n]
			return nil
		}
		*r = ParseRole(s)
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("invalid role %s", data)
	}
	*r = numericRoles[n]
	return nil
}

// Timestamp decodes RFC 3339 as well as the zone-less ISO 8601 form the backend emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// User is the account record returned by the backend for the bearer of a token.
// It is replaced wholesale on every fetch.
type User struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name,omitempty"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	CreatedAt   Timestamp  `json:"created_at"`
	UpdatedAt   *Timestamp `json:"updated_at,omitempty"`
}

// IsDoctor is safe to call on a nil user
func (u *User) IsDoctor() bool {
	return u != nil && (u.Role == RoleDoctor || u.IsSuperuser)
}

func (u *User) IsPatient() bool {
	return u != nil && (u.Role == RolePatient || u.IsSuperuser)
}

func (u *User) IsAdmin() bool {
	return u != nil && (u.Role == RoleAdmin || u.IsSuperuser)
}

// HasRole reports whether the user satisfies role. RoleUnset is satisfied by any user.
func (u *User) HasRole(role Role) bool {
	switch role {
	case RoleDoctor:
		return u.IsDoctor()
	case RolePatient:
		return u.IsPatient()
	case RoleAdmin:
		return u.IsAdmin()
	default:
		return u != nil
	}
}

// DisplayName falls back to the email when no full name was registered
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.UpdatedAt != nil {
		c.UpdatedAt = utils.Ptr(*u.UpdatedAt)
	}
	return &c
}
