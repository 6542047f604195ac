// Package directory resolves opaque user identifiers to their role. The
// engine only ever asks one question of it: is this id a provider?
package directory

import (
	"log/slog"
	"strings"
)

const (
	RoleProvider = "provider"
	RoleClient   = "client"
)

type User struct {
	ID   string
	Name string
	Role string
}

type Directory interface {
	FindByID(id string) (User, bool)
}

// Static is a fixed user set resolved at construction time.
type Static struct {
	users map[string]User
}

func NewStatic(users []User) *Static {
	m := make(map[string]User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return &Static{users: m}
}

func (s *Static) FindByID(id string) (User, bool) {
	u, ok := s.users[id]
	return u, ok
}

// Default returns the development seed.
func Default() *Static {
	return NewStatic([]User{
		{ID: "1", Name: "Dr. Jim", Role: RoleProvider},
		{ID: "2", Name: "Bob", Role: RoleClient},
		{ID: "3", Name: "Dr. Jane", Role: RoleProvider},
	})
}

// ParseSeed reads a "id:name:role" comma-separated list. Malformed entries
// are logged and skipped rather than failing startup.
func ParseSeed(raw string, logger *slog.Logger) []User {
	var users []User
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			logger.Warn("invalid directory seed entry", "entry", entry)
			continue
		}
		id := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		role := strings.TrimSpace(parts[2])
		if id == "" || (role != RoleProvider && role != RoleClient) {
			logger.Warn("invalid directory seed entry", "entry", entry)
			continue
		}
		users = append(users, User{ID: id, Name: name, Role: role})
	}
	return users
}
