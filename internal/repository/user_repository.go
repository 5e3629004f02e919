package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/utils"
)

// DemoUser is the built-in demo account.  It is used
// when no accounts are configured.
var DemoUser = UserSeed{Email: "demo@ticket.com", Password: "demo123", Name: "Demo User", Phone: "+1234567890"}

// UserSeed is a plain-text account definition.  Passwords are hashed
// when the directory is built and never kept.
type UserSeed struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// ParseUserSeeds reads the DEMO_USERS format:
// "email:password:name:phone" entries separated by ';'.  Name and
// phone are optional.
func ParseUserSeeds(raw string) ([]UserSeed, error) {
	var out []UserSeed
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid user entry %q, want email:password[:name[:phone]]", entry)
		}
		s := UserSeed{Email: strings.TrimSpace(parts[0]), Password: parts[1]}
		if len(parts) > 2 {
			s.Name = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			s.Phone = strings.TrimSpace(parts[3])
		}
		out = append(out, s)
	}
	return out, nil
}

// UserDirectory is the in-memory account list backing session login.
// User ids are assigned "1", "2", ... in seed order.
type UserDirectory struct {
	mu      sync.RWMutex
	byEmail map[string]model.User
	byID    map[string]model.User
}

// NewUserDirectory hashes every seed with the given bcrypt cost.
func NewUserDirectory(seeds []UserSeed, cost int) (*UserDirectory, error) {
	d := &UserDirectory{
		byEmail: make(map[string]model.User, len(seeds)),
		byID:    make(map[string]model.User, len(seeds)),
	}
	for i, s := range seeds {
		email := utils.NormalizeEmail(s.Email)
		if _, dup := d.byEmail[email]; dup {
			return nil, fmt.Errorf("%w: duplicate user %s", ErrConflict, email)
		}
		hash, err := utils.HashPassword(s.Password, cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", email, err)
		}
		u := model.User{
			ID:           strconv.Itoa(i + 1),
			Email:        email,
			Name:         s.Name,
			Phone:        s.Phone,
			PasswordHash: hash,
		}
		d.byEmail[email] = u
		d.byID[u.ID] = u
	}
	return d, nil
}

// Authenticate returns the user when email and password match.
func (d *UserDirectory) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	d.mu.RLock()
	u, ok := d.byEmail[utils.NormalizeEmail(email)]
	d.mu.RUnlock()
	if !ok || !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// GetByID fetches a user by id.
func (d *UserDirectory) GetByID(ctx context.Context, id string) (model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return model.User{}, fmt.Errorf("%w: user %s", model.ErrNotFound, id)
	}
	return u, nil
}
