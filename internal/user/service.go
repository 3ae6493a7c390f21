package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/greenwinther/VibeWithMe/pkg/models"
)

var ErrUserNotFound = errors.New("user not found")

// DefaultName is assigned when a client joins without a usable display name.
const DefaultName = "Guest"

type Store interface {
	UpsertUser(ctx context.Context, id, name string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, name, avatarURL *string) (*models.User, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// EnsureUser creates the user on first join or renames an existing one.
// Identity is client-generated, so this is always an upsert, never an
// insert-or-fail.
func (s *Service) EnsureUser(ctx context.Context, id, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	user, err := s.store.UpsertUser(ctx, id, name)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, name, avatarURL *string) (*models.User, error) {
	user, err := s.store.UpdateUser(ctx, id, name, avatarURL)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}
