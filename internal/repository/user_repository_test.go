package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/repository"
)

func TestParseUserSeeds(t *testing.T) {
	seeds, err := repository.ParseUserSeeds(" demo@ticket.com:demo123:Demo User:+1234567890 ; ann@example.com:pw ;")
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, repository.DemoUser, seeds[0])
	assert.Equal(t, repository.UserSeed{Email: "ann@example.com", Password: "pw"}, seeds[1])

	for _, bad := range []string{"no-password", ":pw", "ann@example.com:"} {
		_, err := repository.ParseUserSeeds(bad)
		assert.Error(t, err, bad)
	}
}

func TestUserDirectory(t *testing.T) {
	ctx := context.Background()
	dir, err := repository.NewUserDirectory([]repository.UserSeed{
		repository.DemoUser,
		{Email: "Ann@Example.com", Password: "secret", Name: "Ann"},
	}, bcrypt.MinCost)
	require.NoError(t, err)

	u, err := dir.Authenticate(ctx, "  DEMO@ticket.com", "demo123")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)
	assert.Equal(t, "Demo User", u.Name)
	assert.Equal(t, model.ContactInfo{Name: "Demo User", Email: "demo@ticket.com", Phone: "+1234567890"}, u.Contact())
	assert.NotEqual(t, "demo123", u.PasswordHash)

	ann, err := dir.GetByID(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", ann.Email)

	_, err = dir.Authenticate(ctx, "demo@ticket.com", "wrong")
	require.ErrorIs(t, err, repository.ErrInvalidCredentials)
	_, err = dir.Authenticate(ctx, "nobody@ticket.com", "demo123")
	require.ErrorIs(t, err, repository.ErrInvalidCredentials)

	_, err = dir.GetByID(ctx, "3")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestUserDirectoryRejectsDuplicates(t *testing.T) {
	_, err := repository.NewUserDirectory([]repository.UserSeed{
		{Email: "a@b.c", Password: "x"},
		{Email: "A@B.C", Password: "y"},
	}, bcrypt.MinCost)
	require.ErrorIs(t, err, repository.ErrConflict)
}
