package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("user not found")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, email, fullName, passwordHash string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// UpdateProfile changes the display name. ErrNotFound when id is unknown.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, fullName string) (*User, error) {
	return s.update(ctx, id, func(u *User) {
		u.FullName = strings.TrimSpace(fullName)
	})
}

// UpdatePassword stores an already hashed password.
func (s *Service) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (*User, error) {
	return s.update(ctx, id, func(u *User) {
		u.PasswordHash = passwordHash
	})
}

func (s *Service) update(ctx context.Context, id uuid.UUID, apply func(*User)) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	apply(user)
	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
