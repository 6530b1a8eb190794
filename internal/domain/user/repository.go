package user

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

// Repository defines read access to user notification profiles.
type Repository interface {
	ListAll(ctx context.Context) ([]*Profile, error)
	Get(ctx context.Context, userID string) (*Profile, error)
	SetNotificationsEnabled(ctx context.Context, userID string, enabled bool) error
}
