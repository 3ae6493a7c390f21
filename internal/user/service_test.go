package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greenwinther/VibeWithMe/pkg/models"
)

type fakeStore struct {
	users map[string]*models.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*models.User)}
}

func (f *fakeStore) UpsertUser(_ context.Context, id, name string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		u.Name = name
		return u, nil
	}
	u := &models.User{ID: id, Name: name}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id string, name, avatarURL *string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if avatarURL != nil {
		u.AvatarURL = avatarURL
	}
	return u, nil
}

func TestEnsureUser_CreatesAndRenames(t *testing.T) {
	svc := NewService(newFakeStore())

	u, err := svc.EnsureUser(context.Background(), "u1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)

	u, err = svc.EnsureUser(context.Background(), "u1", "Alicia")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", u.Name)
}

func TestEnsureUser_BlankNameGetsDefault(t *testing.T) {
	svc := NewService(newFakeStore())

	u, err := svc.EnsureUser(context.Background(), "u1", "   ")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, u.Name)
}

func TestGetUser_NotFound(t *testing.T) {
	svc := NewService(newFakeStore())

	_, err := svc.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfile_PartialUpdate(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	_, err := svc.EnsureUser(context.Background(), "u1", "Alice")
	require.NoError(t, err)

	avatar := "https://example.com/a.png"
	u, err := svc.UpdateProfile(context.Background(), "u1", nil, &avatar)
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	require.NotNil(t, u.AvatarURL)
	assert.Equal(t, avatar, *u.AvatarURL)
}

func TestUpdateProfile_NotFound(t *testing.T) {
	svc := NewService(newFakeStore())

	name := "Bob"
	_, err := svc.UpdateProfile(context.Background(), "missing", &name, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
